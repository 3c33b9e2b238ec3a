package order

// ShopStatus is the payment status of one shop's slice of an order.
type ShopStatus string

const (
	ShopStatusCreated ShopStatus = "created"
	ShopStatusPaid    ShopStatus = "paid"
)

// Shop groups an order's line items by shop. The workflow's commit step
// flips its status from Created to Paid once the charge succeeded.
type Shop struct {
	ID      string
	OrderID string
	ShopID  string
	Status  ShopStatus
}
