// Package workflow runs the order-payment saga: validate the order, reserve
// stock, charge the gateway exactly once and durably record the outcome.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zakuro-ec/orderpay/internal/apperr"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
	"github.com/zakuro-ec/orderpay/internal/domain/payment"
	"github.com/zakuro-ec/orderpay/internal/inventory"
	"github.com/zakuro-ec/orderpay/internal/metrics"
	"github.com/zakuro-ec/orderpay/internal/pkg/logging"
	"github.com/zakuro-ec/orderpay/internal/store"
)

// DefaultRetryThreshold is the number of consecutive retry-classified
// failures tolerated before an order is declared permanently failed.
const DefaultRetryThreshold = 3

// Runner executes the payment workflow for one order per invocation.
// Invocations for different orders run in parallel; within one order the
// steps are strictly sequential.
type Runner struct {
	store          store.Store
	notifier       Notifier
	metrics        *metrics.Metrics
	logger         *zap.Logger
	tracer         trace.Tracer
	now            Clock
	retryThreshold int
	steps          []Step
}

// NewRunner wires the workflow. logger and notifier must be non-nil;
// metrics may be nil.
func NewRunner(
	s store.Store,
	gateway payment.Gateway,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
	now Clock,
	retryThreshold int,
) *Runner {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if retryThreshold <= 0 {
		retryThreshold = DefaultRetryThreshold
	}

	ledger := inventory.NewLedger(s)
	tracker := NewCompletionTracker(s)

	return &Runner{
		store:          s,
		notifier:       notifier,
		metrics:        m,
		logger:         logger,
		tracer:         otel.Tracer("orderpay/workflow"),
		now:            now,
		retryThreshold: retryThreshold,
		steps: []Step{
			&expirationStep{now: now},
			&loadStep{store: s},
			&shopStep{},
			&skuStep{},
			&paymentMethodStep{now: now},
			&lockStep{tracker: tracker},
			&reserveStep{ledger: ledger},
			&chargeStep{gateway: gateway, ledger: ledger, tracker: tracker, metrics: m},
			&commitPaymentStep{store: s, now: now},
			&commitShopsStep{store: s},
			&reportStep{store: s},
		},
	}
}

// Process handles one trigger delivery: the previous and current snapshots
// of the order document. It is a no-op unless the payment status just
// transitioned into PaymentRequested or the order is flagged for retry.
// The returned error, when non-nil, is always an *apperr.Error.
func (r *Runner) Process(ctx context.Context, prev, curr *order.Order) error {
	if curr == nil {
		return nil
	}
	if !shouldProcess(prev, curr) {
		return nil
	}

	attemptID := uuid.NewString()
	logger := r.logger.With(
		zap.String("order_id", curr.ID),
		zap.String("attempt_id", attemptID),
	)

	ctx, span := r.tracer.Start(ctx, "orderpay.process",
		trace.WithAttributes(
			attribute.String("order.id", curr.ID),
			attribute.String("attempt.id", attemptID),
		))
	defer span.End()

	logger = logging.WithSpan(ctx, logger)
	ctx = logging.ContextWithLogger(ctx, logger)
	logger.Info("workflow_start",
		zap.String("payment_status", string(curr.PaymentStatus)),
		zap.Int("retry_count", curr.Retry.Count),
	)

	ag := &Aggregate{Order: curr}

	if err := r.checkRetryBudget(ctx, curr); err != nil {
		return r.fail(ctx, ag, err)
	}

	for _, step := range r.steps {
		if err := r.runStep(ctx, step, ag); err != nil {
			return r.fail(ctx, ag, apperr.Classify(step.Name(), err))
		}
	}

	logger.Info("workflow_success", zap.String("charge_id", ag.Order.Stripe.ChargeID))
	r.metrics.RecordRun("ok")
	return nil
}

// checkRetryBudget classifies the attempt before any step runs: once the
// consecutive-failure count exceeds the threshold, the order fails
// permanently without touching inventory or the gateway.
func (r *Runner) checkRetryBudget(ctx context.Context, o *order.Order) *apperr.Error {
	if o.Retry.Count <= r.retryThreshold {
		return nil
	}
	logging.FromContext(ctx).Error("retry_budget_exhausted",
		zap.Int("count", o.Retry.Count),
		zap.Int("threshold", r.retryThreshold),
	)
	return apperr.RetryFailed(StepCheckRetry, o.Retry.Count)
}

func (r *Runner) runStep(ctx context.Context, step Step, ag *Aggregate) error {
	ctx, span := r.tracer.Start(ctx, "orderpay.step."+step.Name())
	defer span.End()

	logger := logging.FromContext(ctx)
	start := time.Now()
	err := step.Run(ctx, ag)
	elapsed := time.Since(start)

	if err != nil {
		span.SetAttributes(attribute.String("error.kind", string(apperr.KindOf(err))))
		logger.Warn("step_failed",
			zap.String("step", step.Name()),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}
	logger.Debug("step_done",
		zap.String("step", step.Name()),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// fail persists the terminal classification onto the order document and
// forwards the classified error unchanged to the caller.
func (r *Runner) fail(ctx context.Context, ag *Aggregate, cerr *apperr.Error) error {
	logger := logging.FromContext(ctx)
	orderID := ag.Order.ID
	r.metrics.RecordStepFailure(cerr.Step, string(cerr.Kind))

	switch cerr.Kind {
	case apperr.KindBadRequest:
		result := order.Result{
			Status:  order.ResultBadRequest,
			ID:      string(cerr.Reason),
			Message: cerr.Error(),
		}
		if err := r.store.SetOrderResult(ctx, orderID, result); err != nil {
			logger.Error("result_write_failed", zap.Error(err))
		}
		r.metrics.RecordRun("bad_request")

	case apperr.KindRetry:
		count, err := r.store.IncrementRetry(ctx, orderID, cerr.Error())
		if err != nil {
			logger.Error("retry_increment_failed", zap.Error(err))
		} else {
			logger.Info("retry_recorded", zap.Int("count", count))
		}
		r.metrics.RecordRun("retry")

	case apperr.KindCompleted:
		// Lost the race to a concurrent duplicate invocation; the winner
		// owns the order, so nothing is persisted here.
		logger.Info("duplicate_invocation_detected", zap.String("step", cerr.Step))
		r.metrics.RecordRun("completed")

	default: // apperr.KindFatal
		result := order.Result{
			Status:  order.ResultInternalError,
			ID:      cerr.Step,
			Message: cerr.Error(),
		}
		if err := r.store.SetOrderResult(ctx, orderID, result); err != nil {
			logger.Error("result_write_failed", zap.Error(err))
		}
		r.notifier.NotifyFatal(ctx, orderID, cerr)
		r.metrics.RecordRun("fatal")
	}

	return cerr
}

// shouldProcess is the runner's gate: proceed only on a transition into
// PaymentRequested, or when a previous attempt left the order flagged for
// retry.
func shouldProcess(prev, curr *order.Order) bool {
	entered := curr.PaymentStatus == order.PaymentStatusPaymentRequested &&
		(prev == nil || prev.PaymentStatus != order.PaymentStatusPaymentRequested)
	return entered || curr.FlaggedForRetry()
}
