package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	sharedQuery "github.com/davicafu/deliverylab/shared/platform/query"
	"github.com/davicafu/deliverylab/tests/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	service *OrderService
	repo    *mocks.InMemoryOrderRepo
	pub     *mocks.RecordingPublisher
	cache   *mocks.DummyCache
}

func newFixture(mode DeliveryMode) fixture {
	repo := mocks.NewInMemoryOrderRepo()
	pub := mocks.NewRecordingPublisher()
	cache := &mocks.DummyCache{}
	svc := NewOrderService(repo, mocks.NewSampleCatalog(), pub, cache, ServiceConfig{Mode: mode}, zap.NewNop())
	return fixture{service: svc, repo: repo, pub: pub, cache: cache}
}

func sampleInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerID:   "C",
		RestaurantID: "R",
		Items:        []ItemInput{{DishID: "A", Quantity: 2}},
	}
}

func seedOrder(repo *mocks.InMemoryOrderRepo, id, restaurantID string, status orderDomain.OrderStatus, createdAt time.Time) {
	repo.Put(&orderDomain.Order{
		ID:           id,
		CustomerID:   "C",
		RestaurantID: restaurantID,
		Status:       status,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	})
}

// -------------------- CreateOrder --------------------

func TestCreateOrder_TotalsAndEvents(t *testing.T) {
	f := newFixture(DeliveryDirect)

	order, err := f.service.CreateOrder(context.Background(), sampleInput())

	require.NoError(t, err)
	assert.Equal(t, 12.00, order.TotalAmount)
	assert.Equal(t, 2.00, order.DeliveryFee)
	assert.Equal(t, orderDomain.StatusPlaced, order.Status)
	assert.False(t, order.Archived)
	assert.Equal(t, "Tortilla", order.Items[0].Name)
	assert.Equal(t, "Calle Mayor 1", order.DeliveryAddress.Street)
	assert.Equal(t, orderDomain.StatusPlaced, f.repo.StatusOf(order.ID))

	created := f.pub.OnTopic(orderDomain.TopicOrderCreated)
	require.Len(t, created, 1)
	evt := created[0].Event.(*orderDomain.OrderCreated)
	assert.Equal(t, order.ID, evt.OrderID)
	assert.Equal(t, orderDomain.StatusPlaced, evt.Status)

	notes := f.pub.OnTopic(orderDomain.TopicRestaurantNotification)
	require.Len(t, notes, 1)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(notes[0].Raw, &raw))
	assert.Equal(t, "NEW_ORDER", raw["type"])
	assert.Equal(t, order.ID, raw["order_id"])
	assert.Equal(t, "R", raw["restaurant_id"])

	assert.Len(t, f.pub.Messages, 2)
	assert.Empty(t, f.repo.Outbox)
}

func TestCreateOrder_NotFoundErrors(t *testing.T) {
	cases := []struct {
		name string
		in   CreateOrderInput
		want error
	}{
		{"customer", CreateOrderInput{CustomerID: "X", RestaurantID: "R", Items: []ItemInput{{DishID: "A", Quantity: 1}}}, orderDomain.ErrCustomerNotFound},
		{"restaurant", CreateOrderInput{CustomerID: "C", RestaurantID: "X", Items: []ItemInput{{DishID: "A", Quantity: 1}}}, orderDomain.ErrRestaurantNotFound},
		{"dish", CreateOrderInput{CustomerID: "C", RestaurantID: "R", Items: []ItemInput{{DishID: "X", Quantity: 1}}}, orderDomain.ErrDishNotFound},
		{"dish of another restaurant", CreateOrderInput{CustomerID: "C", RestaurantID: "R", Items: []ItemInput{{DishID: "B", Quantity: 1}}}, orderDomain.ErrDishNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(DeliveryDirect)
			_, err := f.service.CreateOrder(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, f.repo.Orders)
			assert.Empty(t, f.pub.Messages)
		})
	}
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	f := newFixture(DeliveryDirect)
	in := sampleInput()
	in.Items[0].Quantity = 0

	_, err := f.service.CreateOrder(context.Background(), in)

	assert.ErrorIs(t, err, orderDomain.ErrInvalidOrder)
	assert.Empty(t, f.pub.Messages)
}

func TestCreateOrder_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(DeliveryDirect)
	f.pub.Fail = true

	order, err := f.service.CreateOrder(context.Background(), sampleInput())

	require.NoError(t, err)
	assert.Equal(t, orderDomain.StatusPlaced, f.repo.StatusOf(order.ID))
	assert.Len(t, f.pub.Messages, 2)
}

func TestCreateOrder_StoreFailureIsFatal(t *testing.T) {
	f := newFixture(DeliveryDirect)
	f.repo.FailNext = errors.New("mongo down")

	_, err := f.service.CreateOrder(context.Background(), sampleInput())

	assert.Error(t, err)
	assert.Empty(t, f.pub.Messages)
}

func TestCreateOrder_OutboxMode(t *testing.T) {
	f := newFixture(DeliveryOutbox)

	order, err := f.service.CreateOrder(context.Background(), sampleInput())

	require.NoError(t, err)
	assert.Empty(t, f.pub.Messages)
	require.Len(t, f.repo.Outbox, 2)
	assert.Equal(t, orderDomain.OrderCreatedEvent, f.repo.Outbox[0].EventType)
	assert.Equal(t, orderDomain.RestaurantNotificationEvent, f.repo.Outbox[1].EventType)
	assert.Equal(t, order.ID, f.repo.Outbox[0].AggregateID)
}

// -------------------- UpdateOrderStatus --------------------

func TestUpdateOrderStatus_Delivered(t *testing.T) {
	f := newFixture(DeliveryDirect)
	order, _ := f.service.CreateOrder(context.Background(), sampleInput())
	f.pub.Reset()

	updated, previous, err := f.service.UpdateOrderStatus(context.Background(), order.ID, "Delivered")

	require.NoError(t, err)
	assert.Equal(t, orderDomain.StatusPlaced, previous)
	assert.Equal(t, orderDomain.StatusDelivered, updated.Status)
	assert.Equal(t, orderDomain.StatusDelivered, f.repo.StatusOf(order.ID))

	upd := f.pub.OnTopic(orderDomain.TopicOrderUpdated)
	require.Len(t, upd, 1)
	evt := upd[0].Event.(*orderDomain.OrderUpdated)
	assert.Equal(t, orderDomain.StatusPlaced, evt.PreviousStatus)
	assert.Equal(t, orderDomain.StatusDelivered, evt.NewStatus)

	notif := f.pub.OnTopic(orderDomain.TopicCustomerNotification)
	require.Len(t, notif, 1)
	cn := notif[0].Event.(*orderDomain.CustomerNotification)
	assert.Equal(t, orderDomain.NotificationOrderStatusUpdate, cn.Type)
	assert.Equal(t, orderDomain.StatusDelivered, cn.Status)
	assert.Equal(t, "C", cn.CustomerID)

	assert.Len(t, f.pub.Messages, 2)
}

func TestUpdateOrderStatus_PreviousStatusMatchesStored(t *testing.T) {
	f := newFixture(DeliveryDirect)
	order, _ := f.service.CreateOrder(context.Background(), sampleInput())

	steps := []orderDomain.OrderStatus{
		orderDomain.StatusOrderReceived,
		orderDomain.StatusPreparing,
		orderDomain.StatusOutForDelivery,
		orderDomain.StatusDelivered,
	}
	for _, next := range steps {
		before := f.repo.StatusOf(order.ID)
		f.pub.Reset()

		_, previous, err := f.service.UpdateOrderStatus(context.Background(), order.ID, string(next))

		require.NoError(t, err)
		assert.Equal(t, before, previous)
		assert.Equal(t, next, f.repo.StatusOf(order.ID))
		evt := f.pub.OnTopic(orderDomain.TopicOrderUpdated)[0].Event.(*orderDomain.OrderUpdated)
		assert.Equal(t, before, evt.PreviousStatus)
	}
}

func TestUpdateOrderStatus_InvalidStatus(t *testing.T) {
	f := newFixture(DeliveryDirect)
	order, _ := f.service.CreateOrder(context.Background(), sampleInput())
	f.pub.Reset()

	_, _, err := f.service.UpdateOrderStatus(context.Background(), order.ID, "delivered")

	assert.ErrorIs(t, err, orderDomain.ErrInvalidStatus)
	assert.Equal(t, orderDomain.StatusPlaced, f.repo.StatusOf(order.ID))
	assert.Empty(t, f.pub.Messages)
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	f := newFixture(DeliveryDirect)

	_, _, err := f.service.UpdateOrderStatus(context.Background(), "missing", "Preparing")

	assert.ErrorIs(t, err, orderDomain.ErrOrderNotFound)
	assert.Empty(t, f.pub.Messages)
}

func TestUpdateOrderStatus_RejectsRegressionAndTerminal(t *testing.T) {
	f := newFixture(DeliveryDirect)
	seedOrder(f.repo, "o1", "R", orderDomain.StatusOnTheWay, time.Now())
	seedOrder(f.repo, "o2", "R", orderDomain.StatusDelivered, time.Now())

	_, _, err := f.service.UpdateOrderStatus(context.Background(), "o1", "Preparing")
	assert.ErrorIs(t, err, orderDomain.ErrInvalidTransition)

	_, _, err = f.service.UpdateOrderStatus(context.Background(), "o1", "out_for_delivery")
	assert.ErrorIs(t, err, orderDomain.ErrInvalidTransition)

	_, _, err = f.service.UpdateOrderStatus(context.Background(), "o2", "Cancelled")
	assert.ErrorIs(t, err, orderDomain.ErrInvalidTransition)

	assert.Equal(t, orderDomain.StatusOnTheWay, f.repo.StatusOf("o1"))
	assert.Empty(t, f.pub.Messages)
}

func TestUpdateOrderStatus_RefreshesCache(t *testing.T) {
	f := newFixture(DeliveryDirect)
	seedOrder(f.repo, "o1", "R", orderDomain.StatusPlaced, time.Now())
	key := orderDomain.OrderCacheKeyByID("o1")
	require.NoError(t, f.cache.Set(context.Background(), key, &orderDomain.Order{ID: "o1", Status: orderDomain.StatusPlaced}, 60))

	_, _, err := f.service.UpdateOrderStatus(context.Background(), "o1", "Preparing")

	require.NoError(t, err)
	var cached orderDomain.Order
	hit, err := f.cache.Get(context.Background(), key, &cached)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, orderDomain.StatusPreparing, cached.Status)

	got, err := f.service.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, orderDomain.StatusPreparing, got.Status)
}

// slowReadRepo retiene la primera lectura hasta que se libera release, con el
// pedido ya leído.
type slowReadRepo struct {
	*mocks.InMemoryOrderRepo
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *slowReadRepo) GetByID(ctx context.Context, id string) (*orderDomain.Order, error) {
	o, err := r.InMemoryOrderRepo.GetByID(ctx, id)
	r.once.Do(func() {
		close(r.entered)
		<-r.release
	})
	return o, err
}

func TestGetOrder_LateFillDoesNotOverwriteNewerStatus(t *testing.T) {
	inner := mocks.NewInMemoryOrderRepo()
	seedOrder(inner, "o1", "R", orderDomain.StatusPlaced, time.Now())
	repo := &slowReadRepo{InMemoryOrderRepo: inner, entered: make(chan struct{}), release: make(chan struct{})}
	cache := &mocks.DummyCache{}
	svc := NewOrderService(repo, mocks.NewSampleCatalog(), mocks.NewRecordingPublisher(), cache, ServiceConfig{Mode: DeliveryDirect}, zap.NewNop())
	ctx := context.Background()

	readDone := make(chan *orderDomain.Order, 1)
	go func() {
		o, err := svc.GetOrder(ctx, "o1")
		assert.NoError(t, err)
		readDone <- o
	}()
	<-repo.entered

	_, _, err := svc.UpdateOrderStatus(ctx, "o1", "Delivered")
	require.NoError(t, err)
	close(repo.release)

	stale := <-readDone
	require.NotNil(t, stale)
	assert.Equal(t, orderDomain.StatusPlaced, stale.Status)

	assert.Never(t, func() bool {
		got, err := svc.GetOrder(ctx, "o1")
		return err != nil || got.Status != orderDomain.StatusDelivered
	}, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, orderDomain.StatusDelivered, inner.StatusOf("o1"))
}

func TestReconcileStatus_RefreshesCache(t *testing.T) {
	f := newFixture(DeliveryDirect)
	seedOrder(f.repo, "o1", "R", orderDomain.StatusPlaced, time.Now())
	key := orderDomain.OrderCacheKeyByID("o1")
	require.NoError(t, f.cache.Set(context.Background(), key, &orderDomain.Order{ID: "o1", Status: orderDomain.StatusPlaced}, 60))

	changed, err := f.service.ReconcileStatus(context.Background(), "o1", orderDomain.StatusPreparing)

	require.NoError(t, err)
	assert.True(t, changed)
	got, err := f.service.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, orderDomain.StatusPreparing, got.Status)
}

func TestUpdateOrderStatus_OutboxMode(t *testing.T) {
	f := newFixture(DeliveryOutbox)
	seedOrder(f.repo, "o1", "R", orderDomain.StatusPlaced, time.Now())

	_, _, err := f.service.UpdateOrderStatus(context.Background(), "o1", "Cancelled")

	require.NoError(t, err)
	assert.Empty(t, f.pub.Messages)
	require.Len(t, f.repo.Outbox, 2)
	payload := f.repo.Outbox[0].Payload.(*orderDomain.OrderUpdated)
	assert.Equal(t, orderDomain.StatusPlaced, payload.PreviousStatus)
	assert.Equal(t, orderDomain.StatusCancelled, payload.NewStatus)
}

// -------------------- AdvanceStatus --------------------

func TestAdvanceStatus_Success(t *testing.T) {
	f := newFixture(DeliveryDirect)
	seedOrder(f.repo, "o1", "R", orderDomain.StatusPlaced, time.Now())

	advanced, err := f.service.AdvanceStatus(context.Background(), "o1", orderDomain.StatusPlaced, orderDomain.StatusPreparing)

	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, orderDomain.StatusPreparing, f.repo.StatusOf("o1"))
	assert.Len(t, f.pub.OnTopic(orderDomain.TopicOrderUpdated), 1)
	assert.Len(t, f.pub.OnTopic(orderDomain.TopicCustomerNotification), 1)
}

func TestAdvanceStatus_DoesNotClobberHumanUpdate(t *testing.T) {
	f := newFixture(DeliveryDirect)
	seedOrder(f.repo, "o1", "R", orderDomain.StatusPlaced, time.Now())
	_, _, err := f.service.UpdateOrderStatus(context.Background(), "o1", "On the Way")
	require.NoError(t, err)
	f.pub.Reset()

	advanced, err := f.service.AdvanceStatus(context.Background(), "o1", orderDomain.StatusPlaced, orderDomain.StatusPreparing)

	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, orderDomain.StatusOnTheWay, f.repo.StatusOf("o1"))
	assert.Empty(t, f.pub.Messages)
}

// -------------------- ReconcileStatus --------------------

func TestReconcileStatus_IdempotentAndForwardOnly(t *testing.T) {
	f := newFixture(DeliveryDirect)
	seedOrder(f.repo, "o1", "R", orderDomain.StatusPlaced, time.Now())

	changed, err := f.service.ReconcileStatus(context.Background(), "o1", orderDomain.StatusPreparing)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.service.ReconcileStatus(context.Background(), "o1", orderDomain.StatusPreparing)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, orderDomain.StatusPreparing, f.repo.StatusOf("o1"))

	// Un ORDER_CREATED atrasado no devuelve el pedido a placed.
	changed, err = f.service.ReconcileStatus(context.Background(), "o1", orderDomain.StatusPlaced)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, orderDomain.StatusPreparing, f.repo.StatusOf("o1"))

	assert.Empty(t, f.pub.Messages)
}

func TestReconcileStatus_Errors(t *testing.T) {
	f := newFixture(DeliveryDirect)

	_, err := f.service.ReconcileStatus(context.Background(), "missing", orderDomain.StatusPreparing)
	assert.ErrorIs(t, err, orderDomain.ErrOrderNotFound)

	_, err = f.service.ReconcileStatus(context.Background(), "missing", "nope")
	assert.ErrorIs(t, err, orderDomain.ErrInvalidStatus)
}

// -------------------- Archivado --------------------

func TestArchiveCompleted_SelectiveAndIdempotent(t *testing.T) {
	f := newFixture(DeliveryDirect)
	seedOrder(f.repo, "done", "R", orderDomain.StatusDelivered, time.Now())
	seedOrder(f.repo, "cooking", "R", orderDomain.StatusPreparing, time.Now())
	seedOrder(f.repo, "other", "R2", orderDomain.StatusCancelled, time.Now())

	n, err := f.service.ArchiveCompleted(context.Background(), "R")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, f.repo.Orders["done"].Archived)
	assert.False(t, f.repo.Orders["cooking"].Archived)
	assert.False(t, f.repo.Orders["other"].Archived)

	n, err = f.service.ArchiveCompleted(context.Background(), "R")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Empty(t, f.pub.Messages)
}

func TestArchiveCompleted_UnknownRestaurant(t *testing.T) {
	f := newFixture(DeliveryDirect)

	_, err := f.service.ArchiveCompleted(context.Background(), "X")

	assert.ErrorIs(t, err, orderDomain.ErrRestaurantNotFound)
}

// -------------------- Lecturas --------------------

func TestListRestaurantOrders_NumberedNewestFirst(t *testing.T) {
	f := newFixture(DeliveryDirect)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	seedOrder(f.repo, "old", "R", orderDomain.StatusPlaced, base)
	seedOrder(f.repo, "new", "R", orderDomain.StatusPreparing, base.Add(time.Hour))
	seedOrder(f.repo, "archived", "R", orderDomain.StatusDelivered, base.Add(2*time.Hour))
	f.repo.Orders["archived"].Archived = true

	list, err := f.service.ListRestaurantOrders(context.Background(), "R", "", nil)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, 1, list[0].OrderNumber)
	assert.Equal(t, "old", list[1].ID)
	assert.Equal(t, 2, list[1].OrderNumber)

	filtered, err := f.service.ListRestaurantOrders(context.Background(), "R", "placed", sharedQuery.OffsetPagination{Offset: 0, Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "old", filtered[0].ID)

	_, err = f.service.ListRestaurantOrders(context.Background(), "R", "bogus", nil)
	assert.ErrorIs(t, err, orderDomain.ErrInvalidStatus)
}

func TestListCustomerOrders_ExcludesArchived(t *testing.T) {
	f := newFixture(DeliveryDirect)
	seedOrder(f.repo, "a", "R", orderDomain.StatusPlaced, time.Now())
	seedOrder(f.repo, "b", "R", orderDomain.StatusDelivered, time.Now())
	f.repo.Orders["b"].Archived = true

	list, err := f.service.ListCustomerOrders(context.Background(), "C", nil)

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
}

func TestGetOrder_CacheHit(t *testing.T) {
	f := newFixture(DeliveryDirect)
	cached := &orderDomain.Order{ID: "cached", Status: orderDomain.StatusPreparing}
	require.NoError(t, f.cache.Set(context.Background(), orderDomain.OrderCacheKeyByID("cached"), cached, 60))

	got, err := f.service.GetOrder(context.Background(), "cached")

	require.NoError(t, err)
	assert.Equal(t, orderDomain.StatusPreparing, got.Status)
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(DeliveryDirect)

	_, err := f.service.GetOrder(context.Background(), "missing")

	assert.ErrorIs(t, err, orderDomain.ErrOrderNotFound)
}
