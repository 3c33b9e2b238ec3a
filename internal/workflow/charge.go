package workflow

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zakuro-ec/orderpay/internal/domain/payment"
	"github.com/zakuro-ec/orderpay/internal/inventory"
	"github.com/zakuro-ec/orderpay/internal/metrics"
	"github.com/zakuro-ec/orderpay/internal/pkg/logging"
)

// chargeStep calls the payment gateway. The idempotency key is the order ID
// so a retried network call cannot produce a second charge. On any failure
// it compensates: the stock reservation is released and the idempotency
// lock is cleared before the classified error propagates.
type chargeStep struct {
	gateway payment.Gateway
	ledger  *inventory.Ledger
	tracker *CompletionTracker
	metrics *metrics.Metrics
}

func (s *chargeStep) Name() string { return StepCharge }

func (s *chargeStep) Run(ctx context.Context, ag *Aggregate) error {
	if ag.AlreadyCharged() {
		return nil
	}
	logger := logging.FromContext(ctx).With(zap.String("step", StepCharge))

	req := payment.ChargeRequest{
		OrderID:          ag.Order.ID,
		Amount:           ag.Order.Amount,
		Currency:         ag.Order.Currency,
		CustomerRef:      ag.Buyer.StripeCustomerID,
		PaymentMethodRef: ag.Card.PaymentMethodID,
		IdempotencyKey:   ag.Order.ID,
		Description:      s.description(ag),
	}

	start := time.Now()
	charge, err := s.gateway.Charge(ctx, req)
	s.metrics.ObserveChargeSeconds(time.Since(start).Seconds())

	if err != nil {
		logger.Warn("charge_failed", zap.Error(err))
		s.compensate(ctx, ag)
		return err
	}

	ag.Charge = charge
	logger.Info("charge_created", zap.String("charge_id", charge.ID))
	return nil
}

// compensate reverses this run's side effects. The charge itself never
// happened, so releasing the local reservation and the lock restores the
// pre-run state; a future retry starts clean.
func (s *chargeStep) compensate(ctx context.Context, ag *Aggregate) {
	logger := logging.FromContext(ctx).With(zap.String("step", StepCharge))

	if ag.Reserved {
		if err := s.ledger.Adjust(ctx, StepCharge, ag.Items, inventory.SignRelease); err != nil {
			logger.Error("stock_release_failed", zap.Error(err))
		} else {
			ag.Reserved = false
		}
	}
	if err := s.tracker.Release(ctx, ag.Order.ID, StepPreventMultiple); err != nil {
		logger.Error("lock_release_failed", zap.Error(err))
	}
}

func (s *chargeStep) description(ag *Aggregate) string {
	names := make([]string, 0, len(ag.Items))
	for _, item := range ag.Items {
		if p, ok := ag.Products[item.Product.ProductID]; ok {
			names = append(names, p.Name)
			continue
		}
		names = append(names, item.Product.Name)
	}
	return strings.Join(names, ", ")
}
