package workflow

import "context"

// lockStep acquires the idempotency lock before any non-idempotent
// mutation. Two concurrent invocations of the same order race here; the
// loser aborts with a Completed classification and no side effects.
type lockStep struct {
	tracker *CompletionTracker
}

func (s *lockStep) Name() string { return StepPreventMultiple }

func (s *lockStep) Run(ctx context.Context, ag *Aggregate) error {
	if ag.AlreadyCharged() {
		return nil
	}
	return s.tracker.Acquire(ctx, ag.Order.ID, StepPreventMultiple)
}
