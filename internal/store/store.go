// Package store defines the document-store port of the workflow. The
// workflow never talks to a driver directly; it sees versioned logical
// collections (orders, shops, products, skus, orderSKUs, orderShops, users,
// cards) behind this interface. Implementations live in store/mongo and
// store/memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zakuro-ec/orderpay/internal/domain/buyer"
	"github.com/zakuro-ec/orderpay/internal/domain/catalog"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
)

// ErrNotFound is returned for any missing document regardless of collection.
var ErrNotFound = errors.New("store: document not found")

// ErrStepAlreadyCompleted is returned by Tx.SetStepCompleted when the
// completion marker already exists; the caller lost the idempotency race.
var ErrStepAlreadyCompleted = errors.New("store: step already completed")

// Tx is the transactional view handed to RunTransaction callbacks. Reads
// observe a serializable snapshot; writes are staged and either all commit
// or none do.
type Tx interface {
	// Order reads the order document inside the transaction.
	Order(ctx context.Context, id string) (*order.Order, error)

	// SKU reads the live SKU document inside the transaction.
	SKU(ctx context.Context, id string) (*catalog.SKU, error)

	// SetSKUStock stages a write of the SKU's stock level.
	SetSKUStock(ctx context.Context, id string, stock int64) error

	// SetStepCompleted stages the completion marker for a named step,
	// failing with ErrStepAlreadyCompleted when the marker is present.
	// Co-locating the marker with the guarded mutation in one transaction
	// is what makes the step re-entrancy check race-free.
	SetStepCompleted(ctx context.Context, orderID, step string) error
}

// Store is the document-store client injected into the workflow.
type Store interface {
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	GetBuyer(ctx context.Context, id string) (*buyer.Buyer, error)
	// GetCardByUser returns the stored payment method of the buyer, or
	// buyer.ErrCardNotFound when none is on file.
	GetCardByUser(ctx context.Context, userID string) (*buyer.Card, error)
	GetShop(ctx context.Context, id string) (*catalog.Shop, error)
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	GetSKU(ctx context.Context, id string) (*catalog.SKU, error)

	// ListOrderSKUs returns all line items belonging to the order.
	ListOrderSKUs(ctx context.Context, orderID string) ([]*order.SKU, error)
	// ListOrderShops returns all per-shop groupings of the order.
	ListOrderShops(ctx context.Context, orderID string) ([]*order.Shop, error)

	// SetOrderPaid atomically marks the order paid: payment status, charge
	// identifier and paid timestamp in one write.
	SetOrderPaid(ctx context.Context, orderID, chargeID string, paidAt time.Time) error
	// SetOrderShopStatus updates one order-shop grouping's status.
	SetOrderShopStatus(ctx context.Context, id string, status order.ShopStatus) error
	// SetOrderResult writes the terminal outcome of a processing attempt.
	SetOrderResult(ctx context.Context, orderID string, result order.Result) error

	// IncrementRetry bumps the consecutive-failure counter and appends the
	// raw error description, returning the new count.
	IncrementRetry(ctx context.Context, orderID, cause string) (int, error)
	// ResetRetry clears the retry state after a successful completion.
	ResetRetry(ctx context.Context, orderID string) error

	// ClearStepCompleted removes a completion marker so a legitimate
	// future retry is not blocked by a failed attempt's lock.
	ClearStepCompleted(ctx context.Context, orderID, step string) error

	// RunTransaction executes fn with serializable isolation across the
	// documents it touches. Returning an error aborts every staged write.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
