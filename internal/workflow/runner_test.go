package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zakuro-ec/orderpay/internal/apperr"
	"github.com/zakuro-ec/orderpay/internal/domain/buyer"
	"github.com/zakuro-ec/orderpay/internal/domain/catalog"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
	"github.com/zakuro-ec/orderpay/internal/domain/payment"
	"github.com/zakuro-ec/orderpay/internal/store/memory"
	"github.com/zakuro-ec/orderpay/internal/workflow"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGateway) Charge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Charge{ID: "ch_" + req.OrderID}, nil
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []string
}

func (n *fakeNotifier) NotifyFatal(_ context.Context, orderID string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, orderID)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

type env struct {
	store    *memory.Store
	gateway  *fakeGateway
	notifier *fakeNotifier
	runner   *workflow.Runner
}

// newEnv seeds the standard scenario: one shop, two line items
// (qty 1 @ stock 100, qty 2 @ stock 150), valid stored card, order in
// PaymentRequested.
func newEnv(t *testing.T) *env {
	t.Helper()

	s := memory.New()
	s.PutBuyer(&buyer.Buyer{ID: "user-1", DisplayName: "aki", StripeCustomerID: "cus_1"})
	s.PutCard(&buyer.Card{ID: "card-1", UserID: "user-1", PaymentMethodID: "pm_1", ExpMonth: 12, ExpYear: 2030})
	s.PutShop(&catalog.Shop{ID: "shop-1", Name: "atelier", Active: true})
	s.PutProduct(&catalog.Product{ID: "prod-1", ShopID: "shop-1", Name: "mug", Active: true})
	s.PutProduct(&catalog.Product{ID: "prod-2", ShopID: "shop-1", Name: "shirt", Active: true})
	s.PutSKU(&catalog.SKU{ID: "sku-1", ProductID: "prod-1", Price: 1200, StockType: catalog.StockTypeFinite, Stock: 100, Active: true, Published: true})
	s.PutSKU(&catalog.SKU{ID: "sku-2", ProductID: "prod-2", Price: 3400, StockType: catalog.StockTypeFinite, Stock: 150, Active: true, Published: true})
	s.PutOrder(&order.Order{
		ID:            "order-1",
		UserID:        "user-1",
		Amount:        8000,
		Currency:      "jpy",
		PaymentStatus: order.PaymentStatusPaymentRequested,
		ExpiredAt:     testNow.Add(24 * time.Hour),
	})
	s.PutOrderSKU(&order.SKU{
		ID: "osku-1", OrderID: "order-1", SKUID: "sku-1", ShopID: "shop-1", Quantity: 1,
		Product:  order.ProductSnapshot{ProductID: "prod-1", Name: "mug"},
		Snapshot: order.SKUSnapshot{SKUID: "sku-1", Name: "mug / white", Price: 1200},
	})
	s.PutOrderSKU(&order.SKU{
		ID: "osku-2", OrderID: "order-1", SKUID: "sku-2", ShopID: "shop-1", Quantity: 2,
		Product:  order.ProductSnapshot{ProductID: "prod-2", Name: "shirt"},
		Snapshot: order.SKUSnapshot{SKUID: "sku-2", Name: "shirt / M", Price: 3400},
	})
	s.PutOrderShop(&order.Shop{ID: "oshop-1", OrderID: "order-1", ShopID: "shop-1", Status: order.ShopStatusCreated})

	gw := &fakeGateway{}
	nt := &fakeNotifier{}
	runner := workflow.NewRunner(s, gw, nt, nil, zap.NewNop(), func() time.Time { return testNow }, 0)
	return &env{store: s, gateway: gw, notifier: nt, runner: runner}
}

func (e *env) process(t *testing.T) error {
	t.Helper()
	curr, err := e.store.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	prev := *curr
	prev.PaymentStatus = order.PaymentStatusCreated
	return e.runner.Process(context.Background(), &prev, curr)
}

func (e *env) order(t *testing.T) *order.Order {
	t.Helper()
	o, err := e.store.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	return o
}

func (e *env) stock(t *testing.T, skuID string) int64 {
	t.Helper()
	sku, err := e.store.GetSKU(context.Background(), skuID)
	require.NoError(t, err)
	return sku.Stock
}

func TestProcess_Success(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.process(t))

	assert.Equal(t, int64(99), e.stock(t, "sku-1"))
	assert.Equal(t, int64(148), e.stock(t, "sku-2"))

	o := e.order(t)
	assert.Equal(t, order.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, "ch_order-1", o.Stripe.ChargeID)
	assert.Equal(t, testNow, o.PaidAt)
	require.NotNil(t, o.Result)
	assert.Equal(t, order.ResultOK, o.Result.Status)
	assert.Equal(t, "ch_order-1", o.Result.ID)
	assert.Zero(t, o.Retry.Count)

	shops, err := e.store.ListOrderShops(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, order.ShopStatusPaid, shops[0].Status)

	assert.Equal(t, 1, e.gateway.chargeCount())
	assert.Zero(t, e.notifier.count())
}

func TestProcess_NoTransitionIsNoop(t *testing.T) {
	e := newEnv(t)

	curr := e.order(t)
	prev := *curr // same status, no retry flag

	require.NoError(t, e.runner.Process(context.Background(), &prev, curr))
	assert.Zero(t, e.gateway.chargeCount())
	assert.Equal(t, int64(100), e.stock(t, "sku-1"))
}

func TestProcess_AlreadyPaidIsNoop(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.process(t))
	require.Equal(t, 1, e.gateway.chargeCount())

	// Re-deliver the paid order; nothing may run again.
	curr := e.order(t)
	prev := *curr
	require.NoError(t, e.runner.Process(context.Background(), &prev, curr))

	assert.Equal(t, 1, e.gateway.chargeCount())
	assert.Equal(t, int64(99), e.stock(t, "sku-1"))
	assert.Equal(t, int64(148), e.stock(t, "sku-2"))
}

func TestProcess_ConcurrentDuplicates(t *testing.T) {
	e := newEnv(t)

	curr := e.order(t)
	prev := *curr
	prev.PaymentStatus = order.PaymentStatusCreated

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			c := *curr
			errs <- e.runner.Process(context.Background(), &prev, &c)
		}()
	}
	first, second := <-errs, <-errs

	// One invocation wins. The other either lost the race at the lock
	// (Completed) or arrived after the winner finished and short-circuited
	// on the recorded charge (clean no-op). Both shapes are side-effect
	// free for the loser.
	for _, err := range []error{first, second} {
		if err != nil {
			assert.True(t, apperr.IsKind(err, apperr.KindCompleted), "unexpected error: %v", err)
		}
	}

	// Exactly one charge and one decrement either way.
	assert.Equal(t, 1, e.gateway.chargeCount())
	assert.Equal(t, int64(99), e.stock(t, "sku-1"))
	assert.Equal(t, int64(148), e.stock(t, "sku-2"))
	assert.Equal(t, order.PaymentStatusPaid, e.order(t).PaymentStatus)
}

func TestProcess_LockHeldByConcurrentRun(t *testing.T) {
	e := newEnv(t)

	// Another invocation holds the idempotency lock but has not charged
	// yet; this run must defer with a Completed classification and leave
	// no trace.
	o := e.order(t)
	o.Completed = map[string]bool{workflow.StepPreventMultiple: true}
	e.store.PutOrder(o)

	err := e.process(t)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindCompleted))
	assert.Zero(t, e.gateway.chargeCount())
	assert.Equal(t, int64(100), e.stock(t, "sku-1"))
	assert.Nil(t, e.order(t).Result)
	assert.Zero(t, e.order(t).Retry.Count)
}

func TestProcess_ChargeFailureCompensates(t *testing.T) {
	e := newEnv(t)
	e.gateway.err = apperr.Retry("createStripeCharge", fmt.Errorf("connection reset"))

	err := e.process(t)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRetry))

	// Compensation restored stock and released the lock for a retry.
	assert.Equal(t, int64(100), e.stock(t, "sku-1"))
	assert.Equal(t, int64(150), e.stock(t, "sku-2"))
	o := e.order(t)
	assert.False(t, o.StepCompleted(workflow.StepPreventMultiple))
	assert.Equal(t, 1, o.Retry.Count)
	assert.Equal(t, order.PaymentStatusPaymentRequested, o.PaymentStatus)

	// The retry flag re-arms the gate; a clean gateway finishes the order.
	e.gateway.err = nil
	curr := e.order(t)
	prev := *curr
	require.NoError(t, e.runner.Process(context.Background(), &prev, curr))
	assert.Equal(t, int64(99), e.stock(t, "sku-1"))
	assert.Equal(t, order.PaymentStatusPaid, e.order(t).PaymentStatus)
	assert.Zero(t, e.order(t).Retry.Count)
}

func TestProcess_CardDeclined(t *testing.T) {
	e := newEnv(t)
	e.gateway.err = apperr.BadRequest("createStripeCharge", apperr.ReasonStripeCardDeclined, "card declined")

	err := e.process(t)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))

	assert.Equal(t, int64(100), e.stock(t, "sku-1"))
	o := e.order(t)
	assert.False(t, o.StepCompleted(workflow.StepPreventMultiple))
	require.NotNil(t, o.Result)
	assert.Equal(t, order.ResultBadRequest, o.Result.Status)
	assert.Equal(t, string(apperr.ReasonStripeCardDeclined), o.Result.ID)
}

func TestProcess_OutOfStock(t *testing.T) {
	e := newEnv(t)
	e.store.PutSKU(&catalog.SKU{ID: "sku-2", ProductID: "prod-2", Price: 3400, StockType: catalog.StockTypeFinite, Stock: 1, Active: true, Published: true})

	err := e.process(t)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))
	assert.Equal(t, apperr.ReasonOutOfStock, apperr.ReasonOf(err))

	// No partial decrement of the sibling SKU.
	assert.Equal(t, int64(100), e.stock(t, "sku-1"))
	assert.Equal(t, int64(1), e.stock(t, "sku-2"))
	assert.Zero(t, e.gateway.chargeCount())
}

func TestProcess_InactiveShop(t *testing.T) {
	e := newEnv(t)
	e.store.PutShop(&catalog.Shop{ID: "shop-1", Name: "atelier", Active: false})

	err := e.process(t)
	require.Error(t, err)
	assert.Equal(t, apperr.ReasonShopIsNotActive, apperr.ReasonOf(err))
	assert.Equal(t, int64(100), e.stock(t, "sku-1"))
	assert.Zero(t, e.gateway.chargeCount())
}

func TestProcess_InactiveSKU(t *testing.T) {
	e := newEnv(t)
	e.store.PutSKU(&catalog.SKU{ID: "sku-1", ProductID: "prod-1", Price: 1200, StockType: catalog.StockTypeFinite, Stock: 100, Active: false})

	err := e.process(t)
	require.Error(t, err)
	assert.Equal(t, apperr.ReasonSKUIsNotActive, apperr.ReasonOf(err))
	assert.Equal(t, int64(150), e.stock(t, "sku-2"))
	assert.Zero(t, e.gateway.chargeCount())
}

func TestProcess_ExpiredCard(t *testing.T) {
	e := newEnv(t)
	e.store.PutCard(&buyer.Card{ID: "card-1", UserID: "user-1", PaymentMethodID: "pm_1", ExpMonth: 1, ExpYear: 2024})

	err := e.process(t)
	require.Error(t, err)
	assert.Equal(t, apperr.ReasonStripeCardExpired, apperr.ReasonOf(err))

	o := e.order(t)
	assert.Equal(t, order.PaymentStatusPaymentRequested, o.PaymentStatus)
	assert.Equal(t, int64(100), e.stock(t, "sku-1"))
	require.NotNil(t, o.Result)
	assert.Equal(t, order.ResultBadRequest, o.Result.Status)
	assert.Equal(t, string(apperr.ReasonStripeCardExpired), o.Result.ID)
}

func TestProcess_MissingPaymentMethod(t *testing.T) {
	e := newEnvWithoutCard(t)

	err := e.process(t)
	require.Error(t, err)
	assert.Equal(t, apperr.ReasonPaymentInfoNotFound, apperr.ReasonOf(err))
	assert.Zero(t, e.gateway.chargeCount())
}

func TestProcess_OrderExpired(t *testing.T) {
	e := newEnv(t)
	o := e.order(t)
	o.ExpiredAt = testNow.Add(-time.Hour)
	e.store.PutOrder(o)

	err := e.process(t)
	require.Error(t, err)
	assert.Equal(t, apperr.ReasonOrderExpired, apperr.ReasonOf(err))
	assert.Equal(t, int64(100), e.stock(t, "sku-1"))
	assert.Zero(t, e.gateway.chargeCount())
}

func TestProcess_RetryBudgetExhausted(t *testing.T) {
	e := newEnv(t)
	o := e.order(t)
	o.Retry = order.Retry{Count: 4, Errors: []string{"a", "b", "c", "d"}}
	e.store.PutOrder(o)

	err := e.process(t)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindFatal))
	assert.Equal(t, apperr.ReasonRetryFailed, apperr.ReasonOf(err))

	// Neither inventory nor the gateway was touched.
	assert.Equal(t, int64(100), e.stock(t, "sku-1"))
	assert.Zero(t, e.gateway.chargeCount())
	assert.Equal(t, 1, e.notifier.count())

	res := e.order(t).Result
	require.NotNil(t, res)
	assert.Equal(t, order.ResultInternalError, res.Status)
}

// newEnvWithoutCard is the standard scenario minus the stored card.
func newEnvWithoutCard(t *testing.T) *env {
	t.Helper()

	s := memory.New()
	s.PutBuyer(&buyer.Buyer{ID: "user-1", StripeCustomerID: "cus_1"})
	s.PutShop(&catalog.Shop{ID: "shop-1", Name: "atelier", Active: true})
	s.PutProduct(&catalog.Product{ID: "prod-1", ShopID: "shop-1", Name: "mug", Active: true})
	s.PutSKU(&catalog.SKU{ID: "sku-1", ProductID: "prod-1", Price: 1200, StockType: catalog.StockTypeFinite, Stock: 100, Active: true})
	s.PutOrder(&order.Order{
		ID:            "order-1",
		UserID:        "user-1",
		Amount:        1200,
		Currency:      "jpy",
		PaymentStatus: order.PaymentStatusPaymentRequested,
		ExpiredAt:     testNow.Add(24 * time.Hour),
	})
	s.PutOrderSKU(&order.SKU{
		ID: "osku-1", OrderID: "order-1", SKUID: "sku-1", ShopID: "shop-1", Quantity: 1,
		Product: order.ProductSnapshot{ProductID: "prod-1", Name: "mug"},
	})

	gw := &fakeGateway{}
	nt := &fakeNotifier{}
	runner := workflow.NewRunner(s, gw, nt, nil, zap.NewNop(), func() time.Time { return testNow }, 0)
	return &env{store: s, gateway: gw, notifier: nt, runner: runner}
}
