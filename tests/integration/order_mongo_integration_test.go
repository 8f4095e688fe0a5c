package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	outboxMongo "github.com/davicafu/deliverylab/internal/infra/db/mongodb"
	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	orderRepo "github.com/davicafu/deliverylab/internal/order/infra/outbound/db/mongodb"
	sharedDomain "github.com/davicafu/deliverylab/shared/domain"
	sharedQuery "github.com/davicafu/deliverylab/shared/platform/query"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Estos tests necesitan un MongoDB en replica set (las transacciones lo exigen):
//
//	MONGO_URI="mongodb://localhost:27017/?replicaSet=rs0" go test ./tests/integration/...
func setupMongo(t *testing.T) (*mongo.Client, string) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	dbName := fmt.Sprintf("deliverylab_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Database(dbName).Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return client, dbName
}

func newOrder(id, restaurantID string, status orderDomain.OrderStatus, createdAt time.Time) *orderDomain.Order {
	return &orderDomain.Order{
		ID:           id,
		CustomerID:   "C",
		RestaurantID: restaurantID,
		Items:        []orderDomain.Item{{DishID: "A", Name: "Tortilla", Quantity: 2, Price: 5}},
		Status:       status,
		TotalAmount:  12,
		DeliveryFee:  2,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func TestOrderMongoIntegration_CreateAndCompareAndSet(t *testing.T) {
	client, dbName := setupMongo(t)
	ctx := context.Background()

	repo, err := orderRepo.NewOrderRepoMongoDB(ctx, client, dbName)
	require.NoError(t, err)
	require.NoError(t, repo.EnsureIndexes(ctx))

	o := newOrder(uuid.NewString(), "R", orderDomain.StatusPlaced, time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, orderDomain.StatusPlaced, got.Status)

	updated, err := repo.CompareAndSetStatus(ctx, o.ID, orderDomain.StatusPlaced, orderDomain.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, orderDomain.StatusPreparing, updated.Status)

	// El estado esperado ya no es placed: conflicto, no se escribe nada.
	_, err = repo.CompareAndSetStatus(ctx, o.ID, orderDomain.StatusPlaced, orderDomain.StatusCancelled)
	assert.ErrorIs(t, err, orderDomain.ErrStatusConflict)

	_, err = repo.CompareAndSetStatus(ctx, "missing", orderDomain.StatusPlaced, orderDomain.StatusPreparing)
	assert.ErrorIs(t, err, orderDomain.ErrOrderNotFound)
}

func TestOrderMongoIntegration_OutboxInSameTransaction(t *testing.T) {
	client, dbName := setupMongo(t)
	ctx := context.Background()

	repo, err := orderRepo.NewOrderRepoMongoDB(ctx, client, dbName)
	require.NoError(t, err)
	outbox := outboxMongo.NewOutboxRepoMongoDB(client, dbName)
	require.NoError(t, outbox.EnsureIndexes(ctx))

	now := time.Now().UTC()
	o := newOrder(uuid.NewString(), "R", orderDomain.StatusPlaced, now)
	evt := sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: orderDomain.OrderAggregate,
		AggregateID:   o.ID,
		EventType:     orderDomain.OrderCreatedEvent,
		Payload:       orderDomain.NewOrderCreated(o, now),
		CreatedAt:     now,
	}
	require.NoError(t, repo.Create(ctx, o, evt))

	pending, err := outbox.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	var payload orderDomain.OrderCreated
	require.NoError(t, json.Unmarshal(pending[0].Payload.(json.RawMessage), &payload))
	assert.Equal(t, o.ID, payload.OrderID)

	require.NoError(t, outbox.MarkOutboxProcessed(ctx, evt.ID))
	pending, err = outbox.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Un CAS fallido no deja eventos huérfanos.
	_, err = repo.CompareAndSetStatus(ctx, o.ID, orderDomain.StatusPreparing, orderDomain.StatusOnTheWay, sharedDomain.OutboxEvent{
		ID: uuid.New(), AggregateType: orderDomain.OrderAggregate, AggregateID: o.ID,
		EventType: orderDomain.OrderUpdatedEvent, Payload: map[string]string{}, CreatedAt: now,
	})
	assert.ErrorIs(t, err, orderDomain.ErrStatusConflict)
	pending, err = outbox.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOrderMongoIntegration_ListAndArchive(t *testing.T) {
	client, dbName := setupMongo(t)
	ctx := context.Background()

	repo, err := orderRepo.NewOrderRepoMongoDB(ctx, client, dbName)
	require.NoError(t, err)

	base := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, newOrder("a", "R", orderDomain.StatusDelivered, base)))
	require.NoError(t, repo.Create(ctx, newOrder("b", "R", orderDomain.StatusPreparing, base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newOrder("c", "R2", orderDomain.StatusCancelled, base)))

	n, err := repo.ArchiveCompleted(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.ArchiveCompleted(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	list, err := repo.ListByCriteria(ctx,
		sharedDomain.And(orderDomain.RestaurantIDCriteria{ID: "R"}, orderDomain.NotArchivedCriteria{}),
		sharedQuery.OffsetPagination{Limit: 10},
		sharedQuery.Sort{Field: "created_at", Desc: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

func TestCatalogMongoIntegration_ObjectIDAndStringKeys(t *testing.T) {
	client, dbName := setupMongo(t)
	ctx := context.Background()
	db := client.Database(dbName)

	oid := primitive.NewObjectID()
	_, err := db.Collection("restaurants").InsertOne(ctx, bson.M{"_id": oid, "name": "Casa Pepe", "delivery_fee": 2.5})
	require.NoError(t, err)
	_, err = db.Collection("dishes").InsertOne(ctx, bson.M{"_id": "D1", "restaurant_id": oid, "name": "Tortilla", "price": 5.0})
	require.NoError(t, err)

	catalog := orderRepo.NewCatalogRepoMongoDB(client, dbName)

	r, err := catalog.GetRestaurant(ctx, oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid.Hex(), r.ID)
	assert.Equal(t, 2.5, r.DeliveryFee)

	d, err := catalog.GetDish(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, oid.Hex(), d.RestaurantID)
	assert.True(t, d.Available)

	_, err = catalog.GetCustomer(ctx, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, orderDomain.ErrCustomerNotFound)
}
