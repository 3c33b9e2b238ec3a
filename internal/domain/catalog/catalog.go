// Package catalog holds the read-side references the workflow validates
// against: shops, products and live SKUs.
package catalog

import "errors"

var (
	ErrShopNotFound    = errors.New("catalog: shop not found")
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrSKUNotFound     = errors.New("catalog: sku not found")
)

// Shop is a read-only external reference; only its active flag matters to
// the workflow.
type Shop struct {
	ID     string
	Name   string
	Active bool
}

// Product is a read-only external reference.
type Product struct {
	ID     string
	ShopID string
	Name   string
	Active bool
}

// StockType decides whether inventory reservation enforces a non-negative
// stock invariant or is a no-op.
type StockType string

const (
	StockTypeUnknown  StockType = ""
	StockTypeFinite   StockType = "finite"
	StockTypeInfinite StockType = "infinite"
)

// SKU is the sellable unit. Stock is mutated by the inventory ledger only,
// and only inside a store transaction.
type SKU struct {
	ID        string
	ProductID string
	Name      string
	Price     int64
	StockType StockType
	Stock     int64
	Active    bool
	Published bool
}

// Limited reports whether reservation must enforce the stock invariant.
func (s *SKU) Limited() bool { return s.StockType == StockTypeFinite }
