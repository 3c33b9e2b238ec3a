// Package mongo implements store.Store on MongoDB. One collection per
// logical collection; the transactional surface runs on session
// transactions with snapshot reads and majority writes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/zakuro-ec/orderpay/internal/domain/buyer"
	"github.com/zakuro-ec/orderpay/internal/domain/catalog"
	"github.com/zakuro-ec/orderpay/internal/domain/order"
	"github.com/zakuro-ec/orderpay/internal/store"
)

// Collection name constants.
const (
	colOrders     = "orders"
	colOrderSKUs  = "orderSKUs"
	colOrderShops = "orderShops"
	colShops      = "shops"
	colProducts   = "products"
	colSKUs       = "skus"
	colUsers      = "users"
	colCards      = "cards"
)

var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of store.Store. The caller owns the
// client lifecycle; Store never disconnects it.
type Store struct {
	client *mongod.Client
	db     *mongod.Database
}

// New wraps an existing client and database name.
func New(client *mongod.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Migrate creates the indexes the workflow queries rely on.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongod.IndexModel{
		colOrderSKUs: {
			{Keys: bson.D{{Key: "orderID", Value: 1}}},
		},
		colOrderShops: {
			{Keys: bson.D{{Key: "orderID", Value: 1}, {Key: "paymentStatus", Value: 1}}},
		},
		colCards: {
			{Keys: bson.D{{Key: "userID", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	var m orderModel
	if err := s.db.Collection(colOrders).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, wrapNotFound(err, "get order")
	}
	return fromOrderModel(&m), nil
}

func (s *Store) GetBuyer(ctx context.Context, id string) (*buyer.Buyer, error) {
	var m userModel
	if err := s.db.Collection(colUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, wrapNotFound(err, "get user")
	}
	return fromUserModel(&m), nil
}

func (s *Store) GetCardByUser(ctx context.Context, userID string) (*buyer.Card, error) {
	var m cardModel
	err := s.db.Collection(colCards).FindOne(ctx, bson.M{"userID": userID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, buyer.ErrCardNotFound
		}
		return nil, fmt.Errorf("mongo: get card: %w", err)
	}
	return fromCardModel(&m), nil
}

func (s *Store) GetShop(ctx context.Context, id string) (*catalog.Shop, error) {
	var m shopModel
	if err := s.db.Collection(colShops).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, wrapNotFound(err, "get shop")
	}
	return fromShopModel(&m), nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var m productModel
	if err := s.db.Collection(colProducts).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, wrapNotFound(err, "get product")
	}
	return fromProductModel(&m), nil
}

func (s *Store) GetSKU(ctx context.Context, id string) (*catalog.SKU, error) {
	var m skuModel
	if err := s.db.Collection(colSKUs).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, wrapNotFound(err, "get sku")
	}
	return fromSKUModel(&m), nil
}

func (s *Store) ListOrderSKUs(ctx context.Context, orderID string) ([]*order.SKU, error) {
	cursor, err := s.db.Collection(colOrderSKUs).Find(ctx, bson.M{"orderID": orderID})
	if err != nil {
		return nil, fmt.Errorf("mongo: list orderSKUs: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*order.SKU
	for cursor.Next(ctx) {
		var m orderSKUModel
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("mongo: decode orderSKU: %w", err)
		}
		out = append(out, fromOrderSKUModel(&m))
	}
	return out, cursor.Err()
}

func (s *Store) ListOrderShops(ctx context.Context, orderID string) ([]*order.Shop, error) {
	cursor, err := s.db.Collection(colOrderShops).Find(ctx, bson.M{"orderID": orderID})
	if err != nil {
		return nil, fmt.Errorf("mongo: list orderShops: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*order.Shop
	for cursor.Next(ctx) {
		var m orderShopModel
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("mongo: decode orderShop: %w", err)
		}
		out = append(out, fromOrderShopModel(&m))
	}
	return out, cursor.Err()
}

func (s *Store) SetOrderPaid(ctx context.Context, orderID, chargeID string, paidAt time.Time) error {
	res, err := s.db.Collection(colOrders).UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{"$set": bson.M{
			"paymentStatus":   string(order.PaymentStatusPaid),
			"stripe.chargeID": chargeID,
			"paidDate":        paidAt,
			"updatedAt":       time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("mongo: set order paid: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetOrderShopStatus(ctx context.Context, id string, status order.ShopStatus) error {
	res, err := s.db.Collection(colOrderShops).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"paymentStatus": string(status)}},
	)
	if err != nil {
		return fmt.Errorf("mongo: set orderShop status: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetOrderResult(ctx context.Context, orderID string, result order.Result) error {
	m := resultModel{Status: string(result.Status), ID: result.ID, Message: result.Message}
	res, err := s.db.Collection(colOrders).UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{"$set": bson.M{"result": m, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: set order result: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementRetry(ctx context.Context, orderID, cause string) (int, error) {
	var m orderModel
	err := s.db.Collection(colOrders).FindOneAndUpdate(ctx,
		bson.M{"_id": orderID},
		bson.M{
			"$inc":  bson.M{"retry.count": 1},
			"$push": bson.M{"retry.errors": cause},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return 0, wrapNotFound(err, "increment retry")
	}
	return m.Retry.Count, nil
}

func (s *Store) ResetRetry(ctx context.Context, orderID string) error {
	_, err := s.db.Collection(colOrders).UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{"$set": bson.M{"retry": retryModel{}, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: reset retry: %w", err)
	}
	return nil
}

func (s *Store) ClearStepCompleted(ctx context.Context, orderID, step string) error {
	_, err := s.db.Collection(colOrders).UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{"$unset": bson.M{"completed." + step: ""}},
	)
	if err != nil {
		return fmt.Errorf("mongo: clear step completed: %w", err)
	}
	return nil
}

// RunTransaction executes fn inside a session transaction. Write conflicts
// on overlapping documents are retried by the driver's own transaction
// machinery, transparent to the callback.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return nil, fn(sc, &mongoTx{s: s})
	}, txOpts)
	return err
}

// mongoTx issues its reads and writes with the session-bound context it is
// given, so everything lands in the surrounding transaction.
type mongoTx struct {
	s *Store
}

func (t *mongoTx) Order(ctx context.Context, id string) (*order.Order, error) {
	return t.s.GetOrder(ctx, id)
}

func (t *mongoTx) SKU(ctx context.Context, id string) (*catalog.SKU, error) {
	return t.s.GetSKU(ctx, id)
}

func (t *mongoTx) SetSKUStock(ctx context.Context, id string, stock int64) error {
	res, err := t.s.db.Collection(colSKUs).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"stock": stock, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: set sku stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *mongoTx) SetStepCompleted(ctx context.Context, orderID, step string) error {
	// The filter rejects documents that already carry the marker; a zero
	// match against an existing order means the marker is held.
	res, err := t.s.db.Collection(colOrders).UpdateOne(ctx,
		bson.M{"_id": orderID, "completed." + step: bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"completed." + step: true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: set step completed: %w", err)
	}
	if res.MatchedCount == 0 {
		exists, err := t.orderExists(ctx, orderID)
		if err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		return fmt.Errorf("%w: %s", store.ErrStepAlreadyCompleted, step)
	}
	return nil
}

func (t *mongoTx) orderExists(ctx context.Context, orderID string) (bool, error) {
	n, err := t.s.db.Collection(colOrders).CountDocuments(ctx, bson.M{"_id": orderID})
	if err != nil {
		return false, fmt.Errorf("mongo: count orders: %w", err)
	}
	return n > 0, nil
}

func wrapNotFound(err error, op string) error {
	if errors.Is(err, mongod.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return fmt.Errorf("mongo: %s: %w", op, err)
}
