package order

// ProductSnapshot is the point-in-time copy of the product taken when the
// order was placed, so later catalog edits do not retroactively change a
// placed order.
type ProductSnapshot struct {
	ProductID string
	Name      string
}

// SKUSnapshot is the point-in-time copy of the purchased SKU's attributes.
type SKUSnapshot struct {
	SKUID string
	Name  string
	Price int64
}

// SKU is one line item of an order. It references the live SKU and shop and
// carries immutable snapshots. The workflow only hydrates line items in
// memory; it never writes them back.
type SKU struct {
	ID       string
	OrderID  string
	SKUID    string
	ShopID   string
	Quantity int64
	Product  ProductSnapshot
	Snapshot SKUSnapshot
}
