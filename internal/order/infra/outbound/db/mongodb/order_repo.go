package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	outboxMongo "github.com/davicafu/deliverylab/internal/infra/db/mongodb"
	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	sharedDomain "github.com/davicafu/deliverylab/shared/domain"
	sharedQuery "github.com/davicafu/deliverylab/shared/platform/query"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const OrdersCollection = "orders"

// OrderRepoMongoDB implementa orderDomain.OrderRepository.
type OrderRepoMongoDB struct {
	client     *mongo.Client
	ordersColl *mongo.Collection
	outboxColl *mongo.Collection
}

func NewOrderRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*OrderRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	db := client.Database(dbName)
	return &OrderRepoMongoDB{
		client:     client,
		ordersColl: db.Collection(OrdersCollection),
		outboxColl: db.Collection(outboxMongo.OutboxCollection),
	}, nil
}

// --- Structs de BSON para el mapeo ---

type mongoItem struct {
	DishID   string  `bson:"dish_id"`
	Name     string  `bson:"name"`
	Quantity int     `bson:"quantity"`
	Price    float64 `bson:"price"`
}

type mongoAddress struct {
	Street  string `bson:"street,omitempty"`
	City    string `bson:"city,omitempty"`
	State   string `bson:"state,omitempty"`
	Country string `bson:"country,omitempty"`
	ZipCode string `bson:"zip_code,omitempty"`
}

type mongoOrder struct {
	ID              string                    `bson:"_id"`
	CustomerID      string                    `bson:"customer_id"`
	RestaurantID    string                    `bson:"restaurant_id"`
	Items           []mongoItem               `bson:"items"`
	Status          orderDomain.OrderStatus   `bson:"status"`
	TotalAmount     float64                   `bson:"total_amount"`
	DeliveryFee     float64                   `bson:"delivery_fee"`
	DeliveryAddress *mongoAddress             `bson:"delivery_address,omitempty"`
	PaymentMethod   orderDomain.PaymentMethod `bson:"payment_method,omitempty"`
	Notes           string                    `bson:"order_notes,omitempty"`
	Archived        bool                      `bson:"archived"`
	CreatedAt       time.Time                 `bson:"created_at"`
	UpdatedAt       time.Time                 `bson:"updated_at"`
}

// EnsureIndexes crea los índices de los listados por cliente y por restaurante.
func (r *OrderRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.ordersColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "restaurant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

// --- Escritura ---

func (r *OrderRepoMongoDB) Create(ctx context.Context, o *orderDomain.Order, evts ...sharedDomain.OutboxEvent) error {
	mo := toMongoOrder(o)
	if len(evts) == 0 {
		_, err := r.ordersColl.InsertOne(ctx, mo)
		return err
	}

	return r.withTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.ordersColl.InsertOne(sessCtx, mo); err != nil {
			return err
		}
		return outboxMongo.InsertOutbox(sessCtx, r.outboxColl, evts)
	})
}

func (r *OrderRepoMongoDB) CompareAndSetStatus(
	ctx context.Context,
	id string,
	expected, next orderDomain.OrderStatus,
	evts ...sharedDomain.OutboxEvent,
) (*orderDomain.Order, error) {
	if len(evts) == 0 {
		return r.casStatus(ctx, id, expected, next)
	}

	var updated *orderDomain.Order
	err := r.withTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		o, err := r.casStatus(sessCtx, id, expected, next)
		if err != nil {
			return err
		}
		if err := outboxMongo.InsertOutbox(sessCtx, r.outboxColl, evts); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// casStatus solo escribe si el estado almacenado sigue siendo expected.
func (r *OrderRepoMongoDB) casStatus(ctx context.Context, id string, expected, next orderDomain.OrderStatus) (*orderDomain.Order, error) {
	filter := bson.M{"_id": id, "status": expected}
	update := bson.M{"$set": bson.M{"status": next, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var mo mongoOrder
	err := r.ordersColl.FindOneAndUpdate(ctx, filter, update, opts).Decode(&mo)
	if err == nil {
		return fromMongoOrder(&mo), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	n, err := r.ordersColl.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, orderDomain.ErrOrderNotFound
	}
	return nil, orderDomain.ErrStatusConflict
}

func (r *OrderRepoMongoDB) ArchiveCompleted(ctx context.Context, restaurantID string) (int64, error) {
	filter := bson.M{
		"restaurant_id": restaurantID,
		"status":        bson.M{"$in": orderDomain.TerminalStatuses()},
		"archived":      bson.M{"$ne": true},
	}
	update := bson.M{"$set": bson.M{"archived": true, "updated_at": time.Now().UTC()}}

	res, err := r.ordersColl.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// --- Lectura ---

func (r *OrderRepoMongoDB) GetByID(ctx context.Context, id string) (*orderDomain.Order, error) {
	var mo mongoOrder
	err := r.ordersColl.FindOne(ctx, bson.M{"_id": id}).Decode(&mo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, orderDomain.ErrOrderNotFound
		}
		return nil, err
	}
	return fromMongoOrder(&mo), nil
}

func (r *OrderRepoMongoDB) ListByCriteria(
	ctx context.Context,
	criteria sharedDomain.Criteria,
	pagination sharedQuery.Pagination,
	sort sharedQuery.Sort,
) ([]*orderDomain.Order, error) {
	filter := criteriaToMongoFilter(criteria)
	opts := options.Find()

	if p, ok := pagination.(sharedQuery.OffsetPagination); ok {
		opts.SetSkip(int64(p.Offset))
		if p.Limit > 0 {
			opts.SetLimit(int64(p.Limit))
		}
	}

	if sort.Field != "" {
		sortDir := 1
		if sort.Desc {
			sortDir = -1
		}
		opts.SetSort(bson.D{{Key: sort.Field, Value: sortDir}})
	}

	cursor, err := r.ordersColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]*orderDomain.Order, 0)
	for cursor.Next(ctx) {
		var mo mongoOrder
		if err := cursor.Decode(&mo); err != nil {
			return nil, err
		}
		orders = append(orders, fromMongoOrder(&mo))
	}
	return orders, cursor.Err()
}

func (r *OrderRepoMongoDB) withTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// --- Helpers de mapeo ---

func toMongoOrder(o *orderDomain.Order) *mongoOrder {
	items := make([]mongoItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, mongoItem{DishID: it.DishID, Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}
	var addr *mongoAddress
	if a := o.DeliveryAddress; a != nil {
		addr = &mongoAddress{Street: a.Street, City: a.City, State: a.State, Country: a.Country, ZipCode: a.ZipCode}
	}
	return &mongoOrder{
		ID: o.ID, CustomerID: o.CustomerID, RestaurantID: o.RestaurantID, Items: items,
		Status: o.Status, TotalAmount: o.TotalAmount, DeliveryFee: o.DeliveryFee,
		DeliveryAddress: addr, PaymentMethod: o.PaymentMethod, Notes: o.Notes,
		Archived: o.Archived, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
}

func fromMongoOrder(mo *mongoOrder) *orderDomain.Order {
	items := make([]orderDomain.Item, 0, len(mo.Items))
	for _, it := range mo.Items {
		items = append(items, orderDomain.Item{DishID: it.DishID, Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}
	var addr *orderDomain.Address
	if a := mo.DeliveryAddress; a != nil {
		addr = &orderDomain.Address{Street: a.Street, City: a.City, State: a.State, Country: a.Country, ZipCode: a.ZipCode}
	}
	return &orderDomain.Order{
		ID: mo.ID, CustomerID: mo.CustomerID, RestaurantID: mo.RestaurantID, Items: items,
		Status: mo.Status, TotalAmount: mo.TotalAmount, DeliveryFee: mo.DeliveryFee,
		DeliveryAddress: addr, PaymentMethod: mo.PaymentMethod, Notes: mo.Notes,
		Archived: mo.Archived, CreatedAt: mo.CreatedAt.UTC(), UpdatedAt: mo.UpdatedAt.UTC(),
	}
}

func criteriaToMongoFilter(criteria sharedDomain.Criteria) bson.D {
	if criteria == nil {
		return bson.D{}
	}

	filter := bson.D{}
	for _, c := range criteria.ToConditions() {
		var mongoOp string
		switch c.Op {
		case sharedDomain.OpNe:
			mongoOp = "$ne"
		case sharedDomain.OpIn:
			mongoOp = "$in"
		case sharedDomain.OpGte:
			mongoOp = "$gte"
		case sharedDomain.OpLte:
			mongoOp = "$lte"
		default:
			mongoOp = "$eq"
		}
		filter = append(filter, bson.E{Key: c.Field, Value: bson.M{mongoOp: c.Value}})
	}
	return filter
}

var _ orderDomain.OrderRepository = (*OrderRepoMongoDB)(nil)
