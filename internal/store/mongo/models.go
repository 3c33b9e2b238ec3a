package mongo

import (
	"time"

	"github.com/zakuro-ec/orderpay/internal/domain/buyer"
	"github.com/zakuro-ec/orderpay/internal/domain/catalog"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
)

// Persistence models mirror the domain types with bson tags. Converters keep
// the driver's shapes out of the domain packages.

type orderModel struct {
	ID            string          `bson:"_id"`
	UserID        string          `bson:"userID"`
	Amount        int64           `bson:"amount"`
	Currency      string          `bson:"currency"`
	PaymentStatus string          `bson:"paymentStatus"`
	Stripe        stripeModel     `bson:"stripe"`
	ExpiredAt     time.Time       `bson:"expiredAt,omitempty"`
	PaidAt        time.Time       `bson:"paidDate,omitempty"`
	Completed     map[string]bool `bson:"completed,omitempty"`
	Retry         retryModel      `bson:"retry"`
	Result        *resultModel    `bson:"result,omitempty"`
	CreatedAt     time.Time       `bson:"createdAt"`
	UpdatedAt     time.Time       `bson:"updatedAt"`
}

type stripeModel struct {
	CustomerID string `bson:"customerID,omitempty"`
	CardID     string `bson:"cardID,omitempty"`
	ChargeID   string `bson:"chargeID,omitempty"`
}

type retryModel struct {
	Count  int      `bson:"count"`
	Errors []string `bson:"errors,omitempty"`
}

type resultModel struct {
	Status  string `bson:"status"`
	ID      string `bson:"id,omitempty"`
	Message string `bson:"message,omitempty"`
}

type orderSKUModel struct {
	ID       string           `bson:"_id"`
	OrderID  string           `bson:"orderID"`
	SKUID    string           `bson:"skuID"`
	ShopID   string           `bson:"shopID"`
	Quantity int64            `bson:"quantity"`
	Product  productSnapModel `bson:"product"`
	SKU      skuSnapModel     `bson:"sku"`
}

type productSnapModel struct {
	ProductID string `bson:"productID"`
	Name      string `bson:"name"`
}

type skuSnapModel struct {
	SKUID string `bson:"skuID"`
	Name  string `bson:"name"`
	Price int64  `bson:"price"`
}

type orderShopModel struct {
	ID      string `bson:"_id"`
	OrderID string `bson:"orderID"`
	ShopID  string `bson:"shopID"`
	Status  string `bson:"paymentStatus"`
}

type shopModel struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name"`
	Active bool   `bson:"active"`
}

type productModel struct {
	ID     string `bson:"_id"`
	ShopID string `bson:"shopID"`
	Name   string `bson:"name"`
	Active bool   `bson:"active"`
}

type skuModel struct {
	ID        string `bson:"_id"`
	ProductID string `bson:"productID"`
	Name      string `bson:"name"`
	Price     int64  `bson:"price"`
	StockType string `bson:"stockType"`
	Stock     int64  `bson:"stock"`
	Active    bool   `bson:"active"`
	Published bool   `bson:"published"`
}

type userModel struct {
	ID               string `bson:"_id"`
	DisplayName      string `bson:"displayName"`
	StripeCustomerID string `bson:"stripe.customerID,omitempty"`
}

type cardModel struct {
	ID              string `bson:"_id"`
	UserID          string `bson:"userID"`
	PaymentMethodID string `bson:"paymentMethodID"`
	Brand           string `bson:"brand,omitempty"`
	ExpMonth        int    `bson:"expMonth"`
	ExpYear         int    `bson:"expYear"`
}

func fromOrderModel(m *orderModel) *order.Order {
	o := &order.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		PaymentStatus: order.PaymentStatus(m.PaymentStatus),
		Stripe: order.Stripe{
			CustomerID: m.Stripe.CustomerID,
			CardID:     m.Stripe.CardID,
			ChargeID:   m.Stripe.ChargeID,
		},
		ExpiredAt: m.ExpiredAt,
		PaidAt:    m.PaidAt,
		Completed: m.Completed,
		Retry:     order.Retry{Count: m.Retry.Count, Errors: m.Retry.Errors},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Result != nil {
		o.Result = &order.Result{
			Status:  order.ResultStatus(m.Result.Status),
			ID:      m.Result.ID,
			Message: m.Result.Message,
		}
	}
	return o
}

func fromOrderSKUModel(m *orderSKUModel) *order.SKU {
	return &order.SKU{
		ID:       m.ID,
		OrderID:  m.OrderID,
		SKUID:    m.SKUID,
		ShopID:   m.ShopID,
		Quantity: m.Quantity,
		Product:  order.ProductSnapshot{ProductID: m.Product.ProductID, Name: m.Product.Name},
		Snapshot: order.SKUSnapshot{SKUID: m.SKU.SKUID, Name: m.SKU.Name, Price: m.SKU.Price},
	}
}

func fromOrderShopModel(m *orderShopModel) *order.Shop {
	return &order.Shop{
		ID:      m.ID,
		OrderID: m.OrderID,
		ShopID:  m.ShopID,
		Status:  order.ShopStatus(m.Status),
	}
}

func fromShopModel(m *shopModel) *catalog.Shop {
	return &catalog.Shop{ID: m.ID, Name: m.Name, Active: m.Active}
}

func fromProductModel(m *productModel) *catalog.Product {
	return &catalog.Product{ID: m.ID, ShopID: m.ShopID, Name: m.Name, Active: m.Active}
}

func fromSKUModel(m *skuModel) *catalog.SKU {
	return &catalog.SKU{
		ID:        m.ID,
		ProductID: m.ProductID,
		Name:      m.Name,
		Price:     m.Price,
		StockType: catalog.StockType(m.StockType),
		Stock:     m.Stock,
		Active:    m.Active,
		Published: m.Published,
	}
}

func fromUserModel(m *userModel) *buyer.Buyer {
	return &buyer.Buyer{ID: m.ID, DisplayName: m.DisplayName, StripeCustomerID: m.StripeCustomerID}
}

func fromCardModel(m *cardModel) *buyer.Card {
	return &buyer.Card{
		ID:              m.ID,
		UserID:          m.UserID,
		PaymentMethodID: m.PaymentMethodID,
		Brand:           m.Brand,
		ExpMonth:        m.ExpMonth,
		ExpYear:         m.ExpYear,
	}
}
