package workflow

import "context"

// Persisted step-name identifiers. StepPreventMultiple doubles as the
// completion-marker key of the idempotency lock, so it must stay stable.
const (
	StepCheckRetry       = "checkRetryCount"
	StepCheckExpiration  = "checkExpiration"
	StepLoadData         = "loadData"
	StepValidateShop     = "validateShop"
	StepValidateSKU      = "validateSKU"
	StepValidatePayment  = "validatePaymentMethod"
	StepPreventMultiple  = "preventMultipleProcessing"
	StepReserveStock     = "updateSKUStock"
	StepCharge           = "createStripeCharge"
	StepCommitPayment    = "updateOrder"
	StepCommitOrderShops = "updateOrderShops"
	StepReport           = "reportResult"
)

// Step is one unit of the payment workflow. Steps share the mutable
// aggregate; the first failure aborts the remaining steps. Every error a
// step returns is already classified (see internal/apperr).
type Step interface {
	Name() string
	Run(ctx context.Context, ag *Aggregate) error
}
