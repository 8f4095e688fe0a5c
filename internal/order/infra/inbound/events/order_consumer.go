package events

import (
	"context"
	"time"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	sharedUtils "github.com/davicafu/deliverylab/shared/utils"
	"go.uber.org/zap"
)

// StatusObserver recibe cada estado confirmado por el broker (AdvanceScheduler).
type StatusObserver interface {
	Observe(orderID string, status orderDomain.OrderStatus) bool
}

// OrderConsumer escucha order-created y order-updated en el grupo order-service-group.
type OrderConsumer struct {
	handlerBase
	service  OrderService
	observer StatusObserver
}

func NewOrderConsumer(service OrderService, observer StatusObserver, timeout time.Duration, log *zap.Logger) *OrderConsumer {
	return &OrderConsumer{
		handlerBase: newHandlerBase(log, timeout),
		service:     service,
		observer:    observer,
	}
}

func (c *OrderConsumer) HandleMessage(ctx context.Context, topic string, payload []byte) {
	switch topic {
	case orderDomain.TopicOrderCreated:
		sharedUtils.UnmarshalAndHandle[orderDomain.OrderCreated](c.log, payload, func(evt orderDomain.OrderCreated) {
			c.log.Info("📦 New order created", zap.String("order_id", evt.OrderID), zap.String("restaurant_id", evt.RestaurantID))
			c.withContext(ctx, evt.OrderID, func(ctx context.Context) error {
				_, err := c.service.ReconcileStatus(ctx, evt.OrderID, evt.Status)
				return err
			}, "", evt)
		})

	case orderDomain.TopicOrderUpdated:
		sharedUtils.UnmarshalAndHandle[orderDomain.OrderUpdated](c.log, payload, func(evt orderDomain.OrderUpdated) {
			if c.observer != nil {
				c.observer.Observe(evt.OrderID, evt.NewStatus)
			}
			c.withContext(ctx, evt.OrderID, func(ctx context.Context) error {
				_, err := c.service.ReconcileStatus(ctx, evt.OrderID, evt.NewStatus)
				return err
			}, "", evt)
			c.logMilestone(evt)
		})

	default:
		c.log.Warn("Unexpected topic", zap.String("topic", topic))
	}
}

func (c *OrderConsumer) logMilestone(evt orderDomain.OrderUpdated) {
	switch evt.NewStatus {
	case orderDomain.StatusPreparing, orderDomain.StatusConfirmed:
		c.log.Info("👨‍🍳 Restaurant started preparing order " + evt.OrderID)
	case orderDomain.StatusOnTheWay, orderDomain.StatusOutForDelivery:
		c.log.Info("🛵 Order " + evt.OrderID + " is out for delivery")
	case orderDomain.StatusDelivered:
		c.log.Info("✅ Order " + evt.OrderID + " has been delivered")
	}
}

var _ sharedBus.MessageHandler = (*OrderConsumer)(nil)
