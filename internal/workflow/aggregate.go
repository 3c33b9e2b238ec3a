package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zakuro-ec/orderpay/internal/apperr"
	"github.com/zakuro-ec/orderpay/internal/domain/buyer"
	"github.com/zakuro-ec/orderpay/internal/domain/catalog"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
	"github.com/zakuro-ec/orderpay/internal/domain/payment"
	"github.com/zakuro-ec/orderpay/internal/store"
)

// Aggregate is the mutable context shared by all steps of one run: the
// order with everything the steps need to validate and charge it.
type Aggregate struct {
	Order *order.Order
	Buyer *buyer.Buyer
	// Card is the stored payment method, nil when none is on file.
	Card  *buyer.Card
	Items []*order.SKU

	// Referenced documents keyed by ID.
	Shops    map[string]*catalog.Shop
	SKUs     map[string]*catalog.SKU
	Products map[string]*catalog.Product

	// Charge is set by the charge step when a charge happened in THIS
	// run. A charge recorded on the order from an earlier run shows up as
	// Order.HasCharge() instead.
	Charge *payment.Charge

	// Reserved is set once stock was decremented in this run.
	Reserved bool
}

// AlreadyCharged reports whether a previous run attached a charge to the
// order. Every validating and mutating step short-circuits on it.
func (ag *Aggregate) AlreadyCharged() bool {
	return ag.Order != nil && ag.Order.HasCharge()
}

type loadStep struct {
	store store.Store
}

func (s *loadStep) Name() string { return StepLoadData }

// Run re-reads the order and fans out the reads for buyer, payment method,
// line items and every referenced shop, SKU and product. Any store failure
// is transient from the workflow's point of view and classified Retry.
func (s *loadStep) Run(ctx context.Context, ag *Aggregate) error {
	o, err := s.store.GetOrder(ctx, ag.Order.ID)
	if err != nil {
		return apperr.Retry(StepLoadData, fmt.Errorf("read order: %w", err))
	}
	ag.Order = o

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b, err := s.store.GetBuyer(gctx, o.UserID)
		if err != nil {
			return fmt.Errorf("read buyer %s: %w", o.UserID, err)
		}
		ag.Buyer = b
		return nil
	})
	g.Go(func() error {
		card, err := s.store.GetCardByUser(gctx, o.UserID)
		if errors.Is(err, buyer.ErrCardNotFound) {
			return nil // validated later, PaymentInfoNotFound
		}
		if err != nil {
			return fmt.Errorf("read card of %s: %w", o.UserID, err)
		}
		ag.Card = card
		return nil
	})
	g.Go(func() error {
		items, err := s.store.ListOrderSKUs(gctx, o.ID)
		if err != nil {
			return fmt.Errorf("read line items: %w", err)
		}
		ag.Items = items
		return nil
	})

	if err := g.Wait(); err != nil {
		return apperr.Retry(StepLoadData, err)
	}

	if err := s.loadReferences(ctx, ag); err != nil {
		return apperr.Retry(StepLoadData, err)
	}
	return nil
}

// loadReferences resolves the shop, SKU and product documents referenced by
// the line items, deduplicated by ID.
func (s *loadStep) loadReferences(ctx context.Context, ag *Aggregate) error {
	ag.Shops = make(map[string]*catalog.Shop)
	ag.SKUs = make(map[string]*catalog.SKU)
	ag.Products = make(map[string]*catalog.Product)

	shopIDs := make(map[string]bool)
	skuIDs := make(map[string]bool)
	for _, item := range ag.Items {
		shopIDs[item.ShopID] = true
		skuIDs[item.SKUID] = true
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for shopID := range shopIDs {
		shopID := shopID
		g.Go(func() error {
			sh, err := s.store.GetShop(gctx, shopID)
			if err != nil {
				return fmt.Errorf("read shop %s: %w", shopID, err)
			}
			mu.Lock()
			ag.Shops[shopID] = sh
			mu.Unlock()
			return nil
		})
	}
	for skuID := range skuIDs {
		skuID := skuID
		g.Go(func() error {
			sku, err := s.store.GetSKU(gctx, skuID)
			if err != nil {
				return fmt.Errorf("read sku %s: %w", skuID, err)
			}
			product, err := s.store.GetProduct(gctx, sku.ProductID)
			if err != nil {
				return fmt.Errorf("read product %s: %w", sku.ProductID, err)
			}
			mu.Lock()
			ag.SKUs[skuID] = sku
			ag.Products[product.ID] = product
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}
