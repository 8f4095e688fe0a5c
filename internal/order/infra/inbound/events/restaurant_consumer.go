package events

import (
	"context"
	"time"

	"github.com/davicafu/deliverylab/internal/order/application"
	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	sharedUtils "github.com/davicafu/deliverylab/shared/utils"
	"go.uber.org/zap"
)

// AutoAdvanceConfig controla el avance automático simulado del restaurante.
type AutoAdvanceConfig struct {
	Enabled bool
	Delay   time.Duration
}

// Scheduler es el subconjunto de AdvanceScheduler que usa el restaurante.
type Scheduler interface {
	Schedule(orderID string, delay time.Duration, expectedFrom orderDomain.OrderStatus, fn application.AdvanceFunc) bool
}

// RestaurantConsumer simula el panel del restaurante: al llegar NEW_ORDER programa
// placed -> Preparing y, si se aplica, Preparing -> On the Way.
type RestaurantConsumer struct {
	handlerBase
	service   OrderService
	scheduler Scheduler
	cfg       AutoAdvanceConfig
}

func NewRestaurantConsumer(service OrderService, scheduler Scheduler, cfg AutoAdvanceConfig, timeout time.Duration, log *zap.Logger) *RestaurantConsumer {
	return &RestaurantConsumer{
		handlerBase: newHandlerBase(log, timeout),
		service:     service,
		scheduler:   scheduler,
		cfg:         cfg,
	}
}

func (c *RestaurantConsumer) HandleMessage(ctx context.Context, topic string, payload []byte) {
	if topic != orderDomain.TopicRestaurantNotification {
		c.log.Warn("Unexpected topic", zap.String("topic", topic))
		return
	}

	sharedUtils.UnmarshalAndHandle[orderDomain.RestaurantNotification](c.log, payload, func(evt orderDomain.RestaurantNotification) {
		switch evt.Type {
		case orderDomain.NotificationNewOrder:
			c.withContext(ctx, evt.OrderID, func(ctx context.Context) error {
				return c.onNewOrder(ctx, evt)
			}, "", evt)
		default:
			c.log.Debug("Restaurant notification ignored", zap.String("type", evt.Type))
		}
	})
}

func (c *RestaurantConsumer) onNewOrder(ctx context.Context, evt orderDomain.RestaurantNotification) error {
	order, err := c.service.GetOrder(ctx, evt.OrderID)
	if err != nil {
		return err
	}
	c.log.Info("🔔 Restaurant received new order",
		zap.String("order_id", order.ID),
		zap.String("restaurant_id", order.RestaurantID))

	if !c.cfg.Enabled {
		return nil
	}
	// Redelivery tras un avance: no hay nada que programar.
	if order.Status != orderDomain.StatusPlaced {
		c.log.Debug("Order already moved, auto-advance skipped",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)))
		return nil
	}

	c.scheduler.Schedule(order.ID, c.cfg.Delay, orderDomain.StatusPlaced, func(taskCtx context.Context) {
		if c.advance(taskCtx, order.ID, orderDomain.StatusPlaced, orderDomain.StatusPreparing) {
			c.scheduler.Schedule(order.ID, c.cfg.Delay, orderDomain.StatusPreparing, func(taskCtx context.Context) {
				c.advance(taskCtx, order.ID, orderDomain.StatusPreparing, orderDomain.StatusOnTheWay)
			})
		}
	})
	return nil
}

// advance devuelve true solo si el cambio se aplicó.
func (c *RestaurantConsumer) advance(ctx context.Context, orderID string, from, to orderDomain.OrderStatus) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	applied, err := c.service.AdvanceStatus(ctx, orderID, from, to)
	if err != nil {
		c.log.Warn("Auto-advance failed",
			zap.String("order_id", orderID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err))
		return false
	}
	if !applied {
		c.log.Info("Auto-advance skipped, order moved on",
			zap.String("order_id", orderID),
			zap.String("expected", string(from)))
	}
	return applied
}

var _ sharedBus.MessageHandler = (*RestaurantConsumer)(nil)
