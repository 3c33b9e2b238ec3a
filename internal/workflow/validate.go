package workflow

import (
	"context"
	"fmt"

	"github.com/zakuro-ec/orderpay/internal/apperr"
)

// Validation steps are pure read-then-check. Each one short-circuits when
// the order already carries a charge identifier, which makes every
// validator idempotent post-charge.

type expirationStep struct {
	now Clock
}

func (s *expirationStep) Name() string { return StepCheckExpiration }

func (s *expirationStep) Run(_ context.Context, ag *Aggregate) error {
	if ag.AlreadyCharged() {
		return nil
	}
	if ag.Order.Expired(s.now()) {
		return apperr.BadRequest(StepCheckExpiration, apperr.ReasonOrderExpired,
			fmt.Sprintf("order %s expired at %s", ag.Order.ID, ag.Order.ExpiredAt.Format("2006-01-02T15:04:05Z07:00")))
	}
	return nil
}

type shopStep struct{}

func (s *shopStep) Name() string { return StepValidateShop }

func (s *shopStep) Run(_ context.Context, ag *Aggregate) error {
	if ag.AlreadyCharged() {
		return nil
	}
	for _, sh := range ag.Shops {
		if !sh.Active {
			return apperr.BadRequest(StepValidateShop, apperr.ReasonShopIsNotActive,
				fmt.Sprintf("shop %s is not active", sh.ID))
		}
	}
	return nil
}

type skuStep struct{}

func (s *skuStep) Name() string { return StepValidateSKU }

func (s *skuStep) Run(_ context.Context, ag *Aggregate) error {
	if ag.AlreadyCharged() {
		return nil
	}
	for _, item := range ag.Items {
		sku, ok := ag.SKUs[item.SKUID]
		if !ok || !sku.Active {
			return apperr.BadRequest(StepValidateSKU, apperr.ReasonSKUIsNotActive,
				fmt.Sprintf("sku %s is not active", item.SKUID))
		}
	}
	return nil
}

type paymentMethodStep struct {
	now Clock
}

func (s *paymentMethodStep) Name() string { return StepValidatePayment }

func (s *paymentMethodStep) Run(_ context.Context, ag *Aggregate) error {
	if ag.AlreadyCharged() {
		return nil
	}
	if ag.Buyer == nil || ag.Buyer.StripeCustomerID == "" || ag.Card == nil {
		return apperr.BadRequest(StepValidatePayment, apperr.ReasonPaymentInfoNotFound,
			fmt.Sprintf("no stored payment method for order %s", ag.Order.ID))
	}
	if ag.Card.Expired(s.now()) {
		return apperr.BadRequest(StepValidatePayment, apperr.ReasonStripeCardExpired,
			fmt.Sprintf("card expired %d/%d", ag.Card.ExpMonth, ag.Card.ExpYear))
	}
	return nil
}
