// Package memory is the in-memory store.Store used by tests and local runs.
// Documents are cloned on every read and write so callers cannot alias
// internal state.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zakuro-ec/orderpay/internal/domain/buyer"
	"github.com/zakuro-ec/orderpay/internal/domain/catalog"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
	"github.com/zakuro-ec/orderpay/internal/store"
)

// Store keeps every collection in a map under one mutex. Transactions take
// the write lock for their whole duration, which trivially provides the
// serializable isolation the port demands.
type Store struct {
	mu         sync.Mutex
	orders     map[string]*order.Order
	orderSKUs  map[string]*order.SKU
	orderShops map[string]*order.Shop
	shops      map[string]*catalog.Shop
	products   map[string]*catalog.Product
	skus       map[string]*catalog.SKU
	buyers     map[string]*buyer.Buyer
	cards      map[string]*buyer.Card // keyed by user ID
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		orders:     make(map[string]*order.Order),
		orderSKUs:  make(map[string]*order.SKU),
		orderShops: make(map[string]*order.Shop),
		shops:      make(map[string]*catalog.Shop),
		products:   make(map[string]*catalog.Product),
		skus:       make(map[string]*catalog.SKU),
		buyers:     make(map[string]*buyer.Buyer),
		cards:      make(map[string]*buyer.Card),
	}
}

// Seed helpers for tests and local wiring.

func (s *Store) PutOrder(o *order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
}

func (s *Store) PutOrderSKU(li *order.SKU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *li
	s.orderSKUs[li.ID] = &c
}

func (s *Store) PutOrderShop(os *order.Shop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *os
	s.orderShops[os.ID] = &c
}

func (s *Store) PutShop(sh *catalog.Shop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sh
	s.shops[sh.ID] = &c
}

func (s *Store) PutProduct(p *catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.products[p.ID] = &c
}

func (s *Store) PutSKU(sk *catalog.SKU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sk
	s.skus[sk.ID] = &c
}

func (s *Store) PutBuyer(b *buyer.Buyer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *b
	s.buyers[b.ID] = &c
}

func (s *Store) PutCard(c *buyer.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cc := *c
	s.cards[c.UserID] = &cc
}

// Reads.

func (s *Store) GetOrder(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) GetBuyer(_ context.Context, id string) (*buyer.Buyer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buyers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (s *Store) GetCardByUser(_ context.Context, userID string) (*buyer.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[userID]
	if !ok {
		return nil, buyer.ErrCardNotFound
	}
	cc := *c
	return &cc, nil
}

func (s *Store) GetShop(_ context.Context, id string) (*catalog.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *sh
	return &c, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *Store) GetSKU(_ context.Context, id string) (*catalog.SKU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk, ok := s.skus[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *sk
	return &c, nil
}

func (s *Store) ListOrderSKUs(_ context.Context, orderID string) ([]*order.SKU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.SKU
	for _, li := range s.orderSKUs {
		if li.OrderID == orderID {
			c := *li
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Store) ListOrderShops(_ context.Context, orderID string) ([]*order.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.Shop
	for _, os := range s.orderShops {
		if os.OrderID == orderID {
			c := *os
			out = append(out, &c)
		}
	}
	return out, nil
}

// Writes.

func (s *Store) SetOrderPaid(_ context.Context, orderID, chargeID string, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.PaymentStatus = order.PaymentStatusPaid
	o.Stripe.ChargeID = chargeID
	o.PaidAt = paidAt
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetOrderShopStatus(_ context.Context, id string, status order.ShopStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	os, ok := s.orderShops[id]
	if !ok {
		return store.ErrNotFound
	}
	os.Status = status
	return nil
}

func (s *Store) SetOrderResult(_ context.Context, orderID string, result order.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	r := result
	o.Result = &r
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) IncrementRetry(_ context.Context, orderID, cause string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return 0, store.ErrNotFound
	}
	o.Retry.Count++
	o.Retry.Errors = append(o.Retry.Errors, cause)
	o.UpdatedAt = time.Now().UTC()
	return o.Retry.Count, nil
}

func (s *Store) ResetRetry(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.Retry = order.Retry{}
	return nil
}

func (s *Store) ClearStepCompleted(_ context.Context, orderID, step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	delete(o.Completed, step)
	return nil
}

// RunTransaction holds the store lock for the whole callback and stages all
// writes; they are applied only when fn returns nil.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	s *Store

	stagedStock map[string]int64  // sku ID -> new stock
	stagedSteps map[string]string // order ID -> step name
}

func (t *memTx) Order(_ context.Context, id string) (*order.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (t *memTx) SKU(_ context.Context, id string) (*catalog.SKU, error) {
	sk, ok := t.s.skus[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *sk
	if staged, ok := t.stagedStock[id]; ok {
		c.Stock = staged
	}
	return &c, nil
}

func (t *memTx) SetSKUStock(_ context.Context, id string, stock int64) error {
	if _, ok := t.s.skus[id]; !ok {
		return store.ErrNotFound
	}
	if t.stagedStock == nil {
		t.stagedStock = make(map[string]int64)
	}
	t.stagedStock[id] = stock
	return nil
}

func (t *memTx) SetStepCompleted(_ context.Context, orderID, step string) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	if o.Completed[step] {
		return fmt.Errorf("%w: %s", store.ErrStepAlreadyCompleted, step)
	}
	if staged, ok := t.stagedSteps[orderID]; ok && staged == step {
		return fmt.Errorf("%w: %s", store.ErrStepAlreadyCompleted, step)
	}
	if t.stagedSteps == nil {
		t.stagedSteps = make(map[string]string)
	}
	t.stagedSteps[orderID] = step
	return nil
}

func (t *memTx) commit() {
	for id, stock := range t.stagedStock {
		t.s.skus[id].Stock = stock
	}
	for orderID, step := range t.stagedSteps {
		o := t.s.orders[orderID]
		if o.Completed == nil {
			o.Completed = make(map[string]bool)
		}
		o.Completed[step] = true
		o.UpdatedAt = time.Now().UTC()
	}
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	if o.Completed != nil {
		c.Completed = make(map[string]bool, len(o.Completed))
		for k, v := range o.Completed {
			c.Completed[k] = v
		}
	}
	if o.Retry.Errors != nil {
		c.Retry.Errors = append([]string(nil), o.Retry.Errors...)
	}
	if o.Result != nil {
		r := *o.Result
		c.Result = &r
	}
	return &c
}
