package order

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("order: not found")

// PaymentStatus is the payment lifecycle of an order.
type PaymentStatus string

const (
	PaymentStatusUnknown           PaymentStatus = ""
	PaymentStatusCreated           PaymentStatus = "created"
	PaymentStatusPaymentRequested  PaymentStatus = "payment_requested"
	PaymentStatusWaitingForPayment PaymentStatus = "waiting_for_payment"
	PaymentStatusPaid              PaymentStatus = "paid"
)

// ResultStatus is the terminal outcome of one processing attempt.
type ResultStatus string

const (
	ResultOK            ResultStatus = "OK"
	ResultBadRequest    ResultStatus = "BadRequest"
	ResultInternalError ResultStatus = "InternalError"
)

// Result is the last-attempt outcome persisted on the order for external
// observers. ID carries the violated-rule identifier for BadRequest and the
// failing step name for InternalError.
type Result struct {
	Status  ResultStatus
	ID      string
	Message string
}

// Retry tracks consecutive retry-classified failures. Count is reset only by
// a successful completion; Errors keeps the raw error descriptions.
type Retry struct {
	Count  int
	Errors []string
}

// Stripe holds the payment-provider references attached to the order.
type Stripe struct {
	CustomerID string
	CardID     string
	ChargeID   string
}

// Order is the aggregate root mutated by the payment workflow. It is created
// by the checkout flow and never destroyed, only archived externally.
type Order struct {
	ID            string
	UserID        string
	Amount        int64
	Currency      string
	PaymentStatus PaymentStatus
	Stripe        Stripe
	ExpiredAt     time.Time
	PaidAt        time.Time

	// Completed records, per named step, that a non-idempotent step has
	// already run for this order. Written atomically alongside the
	// mutation it guards.
	Completed map[string]bool

	Retry  Retry
	Result *Result

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCharge reports whether a charge identifier is already attached. Once
// this is true every mutating step of the workflow must short-circuit.
func (o *Order) HasCharge() bool { return o.Stripe.ChargeID != "" }

// Expired reports whether the order passed its expiration timestamp.
func (o *Order) Expired(now time.Time) bool {
	return !o.ExpiredAt.IsZero() && now.After(o.ExpiredAt)
}

// StepCompleted reports whether the named step already ran to completion.
func (o *Order) StepCompleted(step string) bool { return o.Completed[step] }

// FlaggedForRetry reports whether a previous attempt failed with a
// retry-classified error, which re-arms the workflow gate.
func (o *Order) FlaggedForRetry() bool { return o.Retry.Count > 0 }
