// Package inventory adjusts SKU stock levels for an order's line items
// inside one store transaction.
package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zakuro-ec/orderpay/internal/apperr"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
	"github.com/zakuro-ec/orderpay/internal/pkg/logging"
	"github.com/zakuro-ec/orderpay/internal/store"
)

// Sign of a stock adjustment.
const (
	SignReserve = -1
	SignRelease = +1
)

// Ledger reserves and releases stock. All line items of one order are
// adjusted within a single transaction, so a sibling SKU's shortage cannot
// leave another SKU partially decremented.
type Ledger struct {
	store store.Store
}

func NewLedger(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Adjust applies quantity*sign to every line item's SKU. A finite-stock SKU
// that would go negative aborts the whole transaction with OutOfStock.
// Infinite and unknown stock types are left untouched regardless of sign.
func (l *Ledger) Adjust(ctx context.Context, step string, items []*order.SKU, sign int64) error {
	logger := logging.FromContext(ctx).With(zap.String("component", "inventory_ledger"))

	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, item := range items {
			sku, err := tx.SKU(ctx, item.SKUID)
			if err != nil {
				return fmt.Errorf("read sku %s: %w", item.SKUID, err)
			}
			if !sku.Limited() {
				continue
			}

			newStock := sku.Stock + item.Quantity*sign
			if newStock < 0 {
				logger.Info("stock_insufficient",
					zap.String("sku_id", sku.ID),
					zap.Int64("stock", sku.Stock),
					zap.Int64("requested", item.Quantity),
				)
				return apperr.BadRequest(step, apperr.ReasonOutOfStock,
					fmt.Sprintf("sku %s has %d in stock, %d requested", sku.ID, sku.Stock, item.Quantity))
			}
			if err := tx.SetSKUStock(ctx, sku.ID, newStock); err != nil {
				return fmt.Errorf("update sku %s stock: %w", sku.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindBadRequest) {
			return err
		}
		return apperr.Retry(step, err)
	}
	return nil
}
