// Package buyer holds the purchasing user and their stored payment method.
package buyer

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("buyer: not found")
	ErrCardNotFound = errors.New("buyer: card not found")
)

// Buyer is the purchasing user, identified on the gateway side by its
// customer reference.
type Buyer struct {
	ID               string
	DisplayName      string
	StripeCustomerID string
}

// Card is the stored payment method attached to a buyer.
type Card struct {
	ID              string
	UserID          string
	PaymentMethodID string
	Brand           string
	ExpMonth        int
	ExpYear         int
}

// Expired reports whether the card's expiry lies before now. Cards stay
// valid through the last day of their expiry month.
func (c *Card) Expired(now time.Time) bool {
	if c.ExpYear == 0 {
		return false
	}
	// First instant of the month after expiry, in UTC like the gateway.
	end := time.Date(c.ExpYear, time.Month(c.ExpMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.Before(end)
}
