package workflow

import (
	"context"
	"fmt"

	"github.com/zakuro-ec/orderpay/internal/apperr"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
	"github.com/zakuro-ec/orderpay/internal/store"
)

// commitPaymentStep persists the charge outcome: payment status Paid, the
// charge identifier and the paid timestamp in one write. A failure here is
// fatal — the charge already happened externally and must not be retried
// from scratch, so it surfaces for manual reconciliation.
type commitPaymentStep struct {
	store store.Store
	now   Clock
}

func (s *commitPaymentStep) Name() string { return StepCommitPayment }

func (s *commitPaymentStep) Run(ctx context.Context, ag *Aggregate) error {
	if ag.Charge == nil {
		// Nothing was charged in this run; the order either already
		// carries its charge or never reached the gateway.
		return nil
	}
	paidAt := s.now()
	if err := s.store.SetOrderPaid(ctx, ag.Order.ID, ag.Charge.ID, paidAt); err != nil {
		return apperr.Fatal(StepCommitPayment,
			fmt.Errorf("charge %s succeeded but order update failed: %w", ag.Charge.ID, err))
	}
	ag.Order.PaymentStatus = order.PaymentStatusPaid
	ag.Order.Stripe.ChargeID = ag.Charge.ID
	ag.Order.PaidAt = paidAt
	return nil
}

// commitShopsStep flips every order-shop grouping still in Created over to
// Paid. This is pure internal bookkeeping with no external side effect, so
// a failure is Retry-classified and a later invocation finishes the flip.
type commitShopsStep struct {
	store store.Store
}

func (s *commitShopsStep) Name() string { return StepCommitOrderShops }

func (s *commitShopsStep) Run(ctx context.Context, ag *Aggregate) error {
	if ag.Charge == nil && !ag.Order.HasCharge() {
		return nil
	}
	shops, err := s.store.ListOrderShops(ctx, ag.Order.ID)
	if err != nil {
		return apperr.Retry(StepCommitOrderShops, fmt.Errorf("list order shops: %w", err))
	}
	for _, os := range shops {
		if os.Status != order.ShopStatusCreated {
			continue
		}
		if err := s.store.SetOrderShopStatus(ctx, os.ID, order.ShopStatusPaid); err != nil {
			return apperr.Retry(StepCommitOrderShops,
				fmt.Errorf("update order shop %s: %w", os.ID, err))
		}
	}
	return nil
}

// reportStep records the successful terminal state and clears the retry
// counter. Result.ID carries the charge identifier when one exists.
type reportStep struct {
	store store.Store
}

func (s *reportStep) Name() string { return StepReport }

func (s *reportStep) Run(ctx context.Context, ag *Aggregate) error {
	chargeID := ag.Order.Stripe.ChargeID
	if ag.Charge != nil {
		chargeID = ag.Charge.ID
	}
	result := order.Result{Status: order.ResultOK, ID: chargeID}
	if err := s.store.SetOrderResult(ctx, ag.Order.ID, result); err != nil {
		return apperr.Retry(StepReport, fmt.Errorf("write result: %w", err))
	}
	if err := s.store.ResetRetry(ctx, ag.Order.ID); err != nil {
		return apperr.Retry(StepReport, fmt.Errorf("reset retry state: %w", err))
	}
	ag.Order.Result = &result
	return nil
}
