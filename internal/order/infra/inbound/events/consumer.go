package events

import (
	"context"
	"errors"
	"time"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	"go.uber.org/zap"
)

const DefaultHandleTimeout = 5 * time.Second

// OrderService es lo que los consumidores necesitan del caso de uso.
type OrderService interface {
	GetOrder(ctx context.Context, id string) (*orderDomain.Order, error)
	ReconcileStatus(ctx context.Context, id string, target orderDomain.OrderStatus) (bool, error)
	AdvanceStatus(ctx context.Context, id string, from, to orderDomain.OrderStatus) (bool, error)
}

type handlerBase struct {
	log     *zap.Logger
	timeout time.Duration
}

func newHandlerBase(log *zap.Logger, timeout time.Duration) handlerBase {
	if timeout <= 0 {
		timeout = DefaultHandleTimeout
	}
	return handlerBase{log: log, timeout: timeout}
}

// withContext ejecuta la acción con un contexto acotado. Los errores se registran y
// el mensaje se da por consumido: un mensaje malo no puede parar el consumidor.
func (h handlerBase) withContext(ctx context.Context, orderID string, action func(ctx context.Context) error, successMsg string, evt interface{}) {
	ctxOrder, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := action(ctxOrder); err != nil {
		if errors.Is(err, orderDomain.ErrOrderNotFound) {
			h.log.Warn("Event for unknown order dropped",
				zap.String("order_id", orderID),
				zap.Any("event", evt))
			return
		}
		h.log.Warn("Failed to process order event",
			zap.String("order_id", orderID),
			zap.Any("event", evt),
			zap.Error(err),
		)
		return
	}
	if successMsg != "" {
		h.log.Info(successMsg, zap.String("order_id", orderID))
	}
}
