package workflow

import (
	"context"

	"github.com/zakuro-ec/orderpay/internal/inventory"
)

// reserveStep decrements stock for every line item before charging. The
// ledger runs all adjustments in one store transaction, so an out-of-stock
// sibling aborts the whole reservation.
type reserveStep struct {
	ledger *inventory.Ledger
}

func (s *reserveStep) Name() string { return StepReserveStock }

func (s *reserveStep) Run(ctx context.Context, ag *Aggregate) error {
	if ag.AlreadyCharged() {
		return nil
	}
	if err := s.ledger.Adjust(ctx, StepReserveStock, ag.Items, inventory.SignReserve); err != nil {
		return err
	}
	ag.Reserved = true
	return nil
}
