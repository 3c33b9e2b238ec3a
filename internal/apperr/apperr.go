// Package apperr defines the closed error taxonomy of the payment workflow.
//
// Every failure inside the workflow is classified into exactly one Kind
// before it propagates. The runner persists the classification onto the
// order document and forwards the error unchanged to the caller.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure.
type Kind string

const (
	// KindBadRequest marks user-correctable failures: inactive shop or SKU,
	// expired card, missing payment method, out of stock, expired order.
	// The workflow halts and must not be retried.
	KindBadRequest Kind = "bad_request"

	// KindRetry marks transient infrastructure failures. The retry counter
	// on the order is incremented and a later invocation resumes from the
	// top, relying on step-level idempotence.
	KindRetry Kind = "retry"

	// KindCompleted signals that this invocation lost the race against a
	// concurrent duplicate invocation of the same order. It is not a
	// failure from the caller's perspective; the run halts silently.
	KindCompleted Kind = "completed"

	// KindFatal marks failures that need operator attention: unexpected
	// errors, exceeded retry budget, or a commit failure after the external
	// charge already succeeded. Never retried automatically.
	KindFatal Kind = "fatal"
)

// Reason names the specific rule a bad-request failure violated, or the
// terminal condition of a fatal one. Values are persisted on the order
// document, so they are stable identifiers rather than display text.
type Reason string

const (
	ReasonShopIsNotActive     Reason = "ShopIsNotActive"
	ReasonSKUIsNotActive      Reason = "SKUIsNotActive"
	ReasonStripeCardExpired   Reason = "StripeCardExpired"
	ReasonStripeCardDeclined  Reason = "StripeCardDeclined"
	ReasonPaymentInfoNotFound Reason = "PaymentInfoNotFound"
	ReasonOrderExpired        Reason = "OrderExpired"
	ReasonOutOfStock          Reason = "OutOfStock"
	ReasonRetryFailed         Reason = "RetryFailed"
)

// Error is the single error type crossing step boundaries.
type Error struct {
	Kind   Kind
	Reason Reason // set for BadRequest and RetryFailed, empty otherwise
	Step   string // workflow step that raised the error
	Msg    string
	Err    error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Reason != "":
		return fmt.Sprintf("%s [%s/%s]: %s", e.Step, e.Kind, e.Reason, msg)
	case e.Step != "":
		return fmt.Sprintf("%s [%s]: %s", e.Step, e.Kind, msg)
	default:
		return fmt.Sprintf("[%s]: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// BadRequest builds a user-correctable failure for a violated rule.
func BadRequest(step string, reason Reason, msg string) *Error {
	return &Error{Kind: KindBadRequest, Reason: reason, Step: step, Msg: msg}
}

// Retry wraps a transient infrastructure failure.
func Retry(step string, err error) *Error {
	return &Error{Kind: KindRetry, Step: step, Err: err}
}

// Completed signals a lost race against a concurrent duplicate invocation.
func Completed(step string) *Error {
	return &Error{Kind: KindCompleted, Step: step, Msg: "already processed by a concurrent invocation"}
}

// Fatal wraps an operator-visible failure.
func Fatal(step string, err error) *Error {
	return &Error{Kind: KindFatal, Step: step, Err: err}
}

// Fatalf builds an operator-visible failure from a format string.
func Fatalf(step string, format string, args ...any) *Error {
	return &Error{Kind: KindFatal, Step: step, Msg: fmt.Sprintf(format, args...)}
}

// RetryFailed marks an order whose retry budget is exhausted.
func RetryFailed(step string, count int) *Error {
	return &Error{
		Kind:   KindFatal,
		Reason: ReasonRetryFailed,
		Step:   step,
		Msg:    fmt.Sprintf("retry count %d exceeded the allowed budget", count),
	}
}

// KindOf reports the Kind of err. Unclassified errors are Fatal: anything
// that escaped a step without classification is by definition unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// ReasonOf reports the Reason of err, empty when none is attached.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// Classify converts an arbitrary error into a *Error, preserving an
// existing classification and stamping the step name if it is missing.
func Classify(step string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Step == "" {
			e.Step = step
		}
		return e
	}
	return Fatal(step, err)
}
