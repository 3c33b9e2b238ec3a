// Package payment defines the outbound port to the external payment
// provider. The concrete Stripe client lives in internal/gateway/stripe.
package payment

import "context"

// ChargeRequest carries everything the provider needs to create a charge
// exactly once. IdempotencyKey is derived from the order identity so a
// retried network call cannot create a second charge.
type ChargeRequest struct {
	OrderID          string
	Amount           int64
	Currency         string
	CustomerRef      string
	PaymentMethodRef string
	IdempotencyKey   string
	Description      string
}

// Charge is the provider's record of a successful charge.
type Charge struct {
	ID string
}

// Gateway is the idempotent "create charge" operation of the provider.
// Implementations translate provider error categories into the workflow's
// error taxonomy before returning.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
}
