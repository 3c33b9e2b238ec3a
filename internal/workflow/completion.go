package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/zakuro-ec/orderpay/internal/apperr"
	"github.com/zakuro-ec/orderpay/internal/store"
)

// CompletionTracker enforces at-most-once execution of named steps by
// writing a per-order completion marker inside a store transaction. The
// marker lives on the order document itself, so it commits or aborts
// together with whatever mutation it guards.
type CompletionTracker struct {
	store store.Store
}

func NewCompletionTracker(s store.Store) *CompletionTracker {
	return &CompletionTracker{store: s}
}

// Acquire atomically marks the step as completed. When the marker already
// exists the caller lost a race to a concurrent duplicate invocation and
// receives a Completed-classified error; infrastructure failures of the
// marking write are Retry-classified.
func (t *CompletionTracker) Acquire(ctx context.Context, orderID, step string) error {
	err := t.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SetStepCompleted(ctx, orderID, step)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrStepAlreadyCompleted) {
		return apperr.Completed(step)
	}
	return apperr.Retry(step, fmt.Errorf("mark step completed: %w", err))
}

// Release removes the marker so a legitimate future retry is not blocked by
// the failed attempt that held it.
func (t *CompletionTracker) Release(ctx context.Context, orderID, step string) error {
	return t.store.ClearStepCompleted(ctx, orderID, step)
}
