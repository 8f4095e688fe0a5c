package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	sharedDomain "github.com/davicafu/deliverylab/shared/domain"
	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	sharedCache "github.com/davicafu/deliverylab/shared/platform/cache"
	sharedQuery "github.com/davicafu/deliverylab/shared/platform/query"
	sharedUtils "github.com/davicafu/deliverylab/shared/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryMode decide cómo salen los eventos de una escritura.
type DeliveryMode string

const (
	// DeliveryDirect publica justo después de escribir. Best-effort: un fallo se registra
	// y no afecta al resultado de la operación.
	DeliveryDirect DeliveryMode = "direct"
	// DeliveryOutbox guarda los eventos en la misma transacción que el pedido; el relayer los publica.
	DeliveryOutbox DeliveryMode = "outbox"
)

func (m DeliveryMode) Valid() bool {
	return m == DeliveryDirect || m == DeliveryOutbox
}

const (
	defaultCacheTTL   = 60
	reconcileAttempts = 3
	reconcileDelay    = 50 * time.Millisecond
	readAttempts      = 3
	readDelay         = 100 * time.Millisecond
)

type ServiceConfig struct {
	Mode     DeliveryMode
	CacheTTL int // segundos
}

// OrderService implementa el ciclo de vida del pedido: creación, cambios de estado,
// reconciliación desde consumidores, lecturas y archivado.
type OrderService struct {
	repo      orderDomain.OrderRepository
	catalog   orderDomain.CatalogRepository
	publisher sharedBus.EventPublisher
	cache     sharedCache.Cache
	mode      DeliveryMode
	cacheTTL  int
	log       *zap.Logger
}

func NewOrderService(
	repo orderDomain.OrderRepository,
	catalog orderDomain.CatalogRepository,
	publisher sharedBus.EventPublisher,
	cache sharedCache.Cache,
	cfg ServiceConfig,
	log *zap.Logger,
) *OrderService {
	if !cfg.Mode.Valid() {
		cfg.Mode = DeliveryDirect
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &OrderService{
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
		cache:     cache,
		mode:      cfg.Mode,
		cacheTTL:  cfg.CacheTTL,
		log:       log,
	}
}

// ---------- Entradas ----------

type ItemInput struct {
	DishID   string
	Quantity int
}

type CreateOrderInput struct {
	CustomerID      string
	RestaurantID    string
	Items           []ItemInput
	DeliveryAddress *orderDomain.Address
	PaymentMethod   orderDomain.PaymentMethod
	Notes           string
}

// RestaurantOrder añade el número de pedido que se muestra en el panel del restaurante.
type RestaurantOrder struct {
	*orderDomain.Order
	OrderNumber int `json:"order_number"`
}

// ---------- Escrituras ----------

// CreateOrder valida cliente, restaurante y platos, persiste el pedido en placed
// y emite ORDER_CREATED y RESTAURANT_NOTIFICATION.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*orderDomain.Order, error) {
	customer, err := s.catalog.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	restaurant, err := s.catalog.GetRestaurant(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}

	lines := make([]orderDomain.ItemLine, 0, len(in.Items))
	for _, it := range in.Items {
		dish, err := s.catalog.GetDish(ctx, it.DishID)
		if err != nil {
			return nil, err
		}
		if dish.RestaurantID != restaurant.ID {
			return nil, fmt.Errorf("%w: %s", orderDomain.ErrDishNotFound, it.DishID)
		}
		lines = append(lines, orderDomain.ItemLine{Dish: dish, Quantity: it.Quantity})
	}

	order, err := orderDomain.NewOrder(orderDomain.NewOrderParams{
		Customer:        customer,
		Restaurant:      restaurant,
		Lines:           lines,
		DeliveryAddress: in.DeliveryAddress,
		PaymentMethod:   in.PaymentMethod,
		Notes:           in.Notes,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := orderDomain.NewOrderCreated(order, now)
	notification := orderDomain.NewRestaurantNotification(order, now)

	var evts []sharedDomain.OutboxEvent
	if s.mode == DeliveryOutbox {
		evts = []sharedDomain.OutboxEvent{
			newOutboxEvent(order.ID, orderDomain.OrderCreatedEvent, created, now),
			newOutboxEvent(order.ID, orderDomain.RestaurantNotificationEvent, notification, now),
		}
	}

	if err := s.repo.Create(ctx, order, evts...); err != nil {
		s.log.Error("Failed to create order", zap.Error(err))
		return nil, err
	}
	s.log.Info("✅ Order created",
		zap.String("order_id", order.ID),
		zap.String("restaurant_id", order.RestaurantID),
		zap.Float64("total_amount", order.TotalAmount))

	if s.mode == DeliveryDirect {
		s.publish(ctx, orderDomain.TopicOrderCreated, created)
		s.publish(ctx, orderDomain.TopicRestaurantNotification, notification)
	}

	sharedCache.AsyncCacheFill(s.cache, orderDomain.OrderCacheKeyByID(order.ID), order, s.cacheTTL, s.log)
	return order, nil
}

// UpdateOrderStatus aplica un cambio de estado pedido por un humano. Devuelve el pedido
// actualizado y el estado previo.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, raw string) (*orderDomain.Order, orderDomain.OrderStatus, error) {
	next, err := orderDomain.ParseStatus(raw)
	if err != nil {
		return nil, "", err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	previous := current.Status
	if !orderDomain.CanTransition(previous, next) {
		return nil, "", fmt.Errorf("%w: %q -> %q", orderDomain.ErrInvalidTransition, previous, next)
	}

	updated, err := s.transition(ctx, id, previous, next)
	if err != nil {
		return nil, "", err
	}
	return updated, previous, nil
}

// AdvanceStatus es el compare-and-swap de la auto-progresión: solo avanza si el pedido
// sigue en from. Un conflicto no es un error: devuelve advanced=false.
func (s *OrderService) AdvanceStatus(ctx context.Context, id string, from, to orderDomain.OrderStatus) (bool, error) {
	if !orderDomain.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %q -> %q", orderDomain.ErrInvalidTransition, from, to)
	}

	_, err := s.transition(ctx, id, from, to)
	if errors.Is(err, orderDomain.ErrStatusConflict) {
		s.log.Info("Auto-advance skipped, order moved on",
			zap.String("order_id", id),
			zap.String("expected", string(from)))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// transition escribe el cambio condicionado al estado previo y emite
// ORDER_UPDATED y CUSTOMER_NOTIFICATION.
func (s *OrderService) transition(ctx context.Context, id string, from, to orderDomain.OrderStatus) (*orderDomain.Order, error) {
	now := time.Now().UTC()

	var evts []sharedDomain.OutboxEvent
	if s.mode == DeliveryOutbox {
		// En outbox los payloads se construyen antes de escribir; el pedido actualizado
		// aún no existe, así que se parte de la versión leída.
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status != from {
			return nil, orderDomain.ErrStatusConflict
		}
		projected := *current
		projected.Status = to
		evts = []sharedDomain.OutboxEvent{
			newOutboxEvent(id, orderDomain.OrderUpdatedEvent, orderDomain.NewOrderUpdated(&projected, from, now), now),
			newOutboxEvent(id, orderDomain.CustomerNotificationEvent, orderDomain.NewCustomerNotification(&projected, now), now),
		}
	}

	updated, err := s.repo.CompareAndSetStatus(ctx, id, from, to, evts...)
	if err != nil {
		if !errors.Is(err, orderDomain.ErrStatusConflict) {
			s.log.Error("Failed to update order status", zap.String("order_id", id), zap.Error(err))
		}
		return nil, err
	}
	sharedCache.RefreshCache(ctx, s.cache, orderDomain.OrderCacheKeyByID(id), updated, s.cacheTTL, s.log)

	s.log.Info("🔄 Order status updated",
		zap.String("order_id", id),
		zap.String("previous_status", string(from)),
		zap.String("new_status", string(to)))

	if s.mode == DeliveryDirect {
		s.publish(ctx, orderDomain.TopicOrderUpdated, orderDomain.NewOrderUpdated(updated, from, now))
		s.publish(ctx, orderDomain.TopicCustomerNotification, orderDomain.NewCustomerNotification(updated, now))
	}
	return updated, nil
}

// ReconcileStatus alinea el estado almacenado con el de un evento. Solo avanza: si el
// evento está atrasado respecto al almacenado se ignora. No publica nada.
func (s *OrderService) ReconcileStatus(ctx context.Context, id string, target orderDomain.OrderStatus) (bool, error) {
	if !target.Valid() {
		return false, fmt.Errorf("%w: %q", orderDomain.ErrInvalidStatus, target)
	}

	var updated *orderDomain.Order
	err := sharedUtils.Retry(ctx, reconcileAttempts, reconcileDelay, func() error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == target {
			return nil
		}
		if !orderDomain.CanTransition(current.Status, target) {
			s.log.Debug("Reconciliation skipped, stored status is not behind",
				zap.String("order_id", id),
				zap.String("stored", string(current.Status)),
				zap.String("event", string(target)))
			return nil
		}
		o, err := s.repo.CompareAndSetStatus(ctx, id, current.Status, target)
		if err != nil {
			return err
		}
		updated = o
		return nil
	}, func(err error) bool {
		return !errors.Is(err, orderDomain.ErrStatusConflict)
	})
	if err != nil {
		return false, err
	}

	if updated == nil {
		return false, nil
	}
	sharedCache.RefreshCache(ctx, s.cache, orderDomain.OrderCacheKeyByID(id), updated, s.cacheTTL, s.log)
	s.log.Info("Order status synchronized",
		zap.String("order_id", id),
		zap.String("status", string(target)))
	return true, nil
}

// ArchiveCompleted archiva los pedidos terminales del restaurante. No emite eventos.
func (s *OrderService) ArchiveCompleted(ctx context.Context, restaurantID string) (int64, error) {
	if _, err := s.catalog.GetRestaurant(ctx, restaurantID); err != nil {
		return 0, err
	}
	n, err := s.repo.ArchiveCompleted(ctx, restaurantID)
	if err != nil {
		s.log.Error("Failed to archive completed orders", zap.String("restaurant_id", restaurantID), zap.Error(err))
		return 0, err
	}
	s.log.Info("🗄️ Completed orders archived", zap.String("restaurant_id", restaurantID), zap.Int64("count", n))
	return n, nil
}

// ---------- Lecturas ----------

// GetOrder usa cache-aside: caché, repositorio con reintentos y relleno asíncrono
// que no sobrescribe lo que haya dejado una escritura.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*orderDomain.Order, error) {
	key := orderDomain.OrderCacheKeyByID(id)
	if s.cache != nil {
		var o orderDomain.Order
		if hit, _ := s.cache.Get(ctx, key, &o); hit {
			return &o, nil
		}
	}

	var order *orderDomain.Order
	err := sharedUtils.Retry(ctx, readAttempts, readDelay, func() error {
		var errRetry error
		order, errRetry = s.repo.GetByID(ctx, id)
		return errRetry
	}, func(err error) bool {
		return errors.Is(err, orderDomain.ErrOrderNotFound)
	})
	if err != nil {
		if errors.Is(err, orderDomain.ErrOrderNotFound) {
			s.log.Warn("Order not found", zap.String("order_id", id))
		} else {
			s.log.Error("Failed to fetch order", zap.String("order_id", id), zap.Error(err))
		}
		return nil, err
	}

	sharedCache.AsyncCacheFill(s.cache, key, order, s.cacheTTL, s.log)
	return order, nil
}

// ListCustomerOrders devuelve los pedidos no archivados del cliente, los más recientes primero.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID string, pagination sharedQuery.Pagination) ([]*orderDomain.Order, error) {
	if _, err := s.catalog.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	criteria := sharedDomain.And(
		orderDomain.CustomerIDCriteria{ID: customerID},
		orderDomain.NotArchivedCriteria{},
	)
	return s.repo.ListByCriteria(ctx, criteria, pagination, newestFirst())
}

// ListRestaurantOrders devuelve los pedidos no archivados del restaurante, opcionalmente
// filtrados por estado, numerados desde 1 en orden de más reciente a más antiguo.
func (s *OrderService) ListRestaurantOrders(ctx context.Context, restaurantID string, status string, pagination sharedQuery.Pagination) ([]RestaurantOrder, error) {
	if _, err := s.catalog.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}

	var statusCriteria sharedDomain.Criteria
	if status != "" {
		st, err := orderDomain.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		statusCriteria = orderDomain.StatusCriteria{Status: st}
	}

	criteria := sharedDomain.And(
		orderDomain.RestaurantIDCriteria{ID: restaurantID},
		orderDomain.NotArchivedCriteria{},
		statusCriteria,
	)
	orders, err := s.repo.ListByCriteria(ctx, criteria, pagination, newestFirst())
	if err != nil {
		return nil, err
	}

	offset := 0
	if p, ok := pagination.(sharedQuery.OffsetPagination); ok {
		offset = p.Offset
	}
	out := make([]RestaurantOrder, 0, len(orders))
	for i, o := range orders {
		out = append(out, RestaurantOrder{Order: o, OrderNumber: offset + i + 1})
	}
	return out, nil
}

// ---------- Helpers ----------

func (s *OrderService) publish(ctx context.Context, topic string, evt interface{}) {
	if s.publisher == nil {
		return
	}
	if !s.publisher.Publish(ctx, topic, evt) {
		s.log.Warn("⚠️ Event not delivered, continuing (best-effort)", zap.String("topic", topic))
	}
}

func newOutboxEvent(orderID, eventType string, payload interface{}, at time.Time) sharedDomain.OutboxEvent {
	return sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: orderDomain.OrderAggregate,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
	}
}

func newestFirst() sharedQuery.Sort {
	return sharedQuery.Sort{Field: "created_at", Desc: true}
}
