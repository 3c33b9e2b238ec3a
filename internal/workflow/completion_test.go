package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zakuro-ec/orderpay/internal/apperr"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
	"github.com/zakuro-ec/orderpay/internal/store/memory"
	"github.com/zakuro-ec/orderpay/internal/workflow"
)

func TestCompletionTracker_AcquireOnce(t *testing.T) {
	s := memory.New()
	s.PutOrder(&order.Order{ID: "order-1"})
	tracker := workflow.NewCompletionTracker(s)
	ctx := context.Background()

	require.NoError(t, tracker.Acquire(ctx, "order-1", workflow.StepPreventMultiple))

	err := tracker.Acquire(ctx, "order-1", workflow.StepPreventMultiple)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindCompleted))

	o, err := s.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, o.StepCompleted(workflow.StepPreventMultiple))
}

func TestCompletionTracker_ReleaseReopens(t *testing.T) {
	s := memory.New()
	s.PutOrder(&order.Order{ID: "order-1"})
	tracker := workflow.NewCompletionTracker(s)
	ctx := context.Background()

	require.NoError(t, tracker.Acquire(ctx, "order-1", workflow.StepPreventMultiple))
	require.NoError(t, tracker.Release(ctx, "order-1", workflow.StepPreventMultiple))
	require.NoError(t, tracker.Acquire(ctx, "order-1", workflow.StepPreventMultiple))
}

func TestCompletionTracker_MissingOrderIsRetry(t *testing.T) {
	s := memory.New()
	tracker := workflow.NewCompletionTracker(s)

	err := tracker.Acquire(context.Background(), "ghost", workflow.StepPreventMultiple)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRetry))
}

func TestCompletionTracker_IndependentSteps(t *testing.T) {
	s := memory.New()
	s.PutOrder(&order.Order{ID: "order-1"})
	s.PutOrder(&order.Order{ID: "order-2"})
	tracker := workflow.NewCompletionTracker(s)
	ctx := context.Background()

	require.NoError(t, tracker.Acquire(ctx, "order-1", workflow.StepPreventMultiple))
	// A different order is unaffected by order-1's marker.
	require.NoError(t, tracker.Acquire(ctx, "order-2", workflow.StepPreventMultiple))
}
