package events

import (
	"context"
	"time"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	sharedUtils "github.com/davicafu/deliverylab/shared/utils"
	"go.uber.org/zap"
)

// Notifier entrega la notificación al cliente.
type Notifier interface {
	NotifyCustomer(ctx context.Context, n orderDomain.CustomerNotification) error
}

// LogNotifier solo deja constancia en el log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyCustomer(ctx context.Context, msg orderDomain.CustomerNotification) error {
	n.log.Info("📲 Customer notified",
		zap.String("customer_id", msg.CustomerID),
		zap.String("order_id", msg.OrderID),
		zap.String("status", string(msg.Status)))
	return nil
}

// NotificationConsumer escucha customer-notification en notification-service-group.
type NotificationConsumer struct {
	handlerBase
	service  OrderService
	notifier Notifier
}

func NewNotificationConsumer(service OrderService, notifier Notifier, timeout time.Duration, log *zap.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		handlerBase: newHandlerBase(log, timeout),
		service:     service,
		notifier:    notifier,
	}
}

func (c *NotificationConsumer) HandleMessage(ctx context.Context, topic string, payload []byte) {
	if topic != orderDomain.TopicCustomerNotification {
		c.log.Warn("Unexpected topic", zap.String("topic", topic))
		return
	}

	sharedUtils.UnmarshalAndHandle[orderDomain.CustomerNotification](c.log, payload, func(evt orderDomain.CustomerNotification) {
		if evt.Type != orderDomain.NotificationOrderStatusUpdate {
			c.log.Debug("Customer notification ignored", zap.String("type", evt.Type))
			return
		}
		c.withContext(ctx, evt.OrderID, func(ctx context.Context) error {
			if _, err := c.service.ReconcileStatus(ctx, evt.OrderID, evt.Status); err != nil {
				return err
			}
			return c.notifier.NotifyCustomer(ctx, evt)
		}, "Customer notification processed", evt)
	})
}

var _ sharedBus.MessageHandler = (*NotificationConsumer)(nil)
