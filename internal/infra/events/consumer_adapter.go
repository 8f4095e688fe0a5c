package events

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/davicafu/deliverylab/internal/infra/flowlog"
	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const readErrorBackoff = 500 * time.Millisecond

// MessageReader lo cumplen *kafka.Reader y las suscripciones del bus en memoria.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ConsumerAdapter es el "oído": lee mensajes, los traza y se los pasa al handler.
type ConsumerAdapter struct {
	name    string
	reader  MessageReader
	handler sharedBus.MessageHandler
	flow    FlowRecorder
	log     *zap.Logger
}

func NewConsumerAdapter(name string, reader MessageReader, handler sharedBus.MessageHandler, flow FlowRecorder, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		name:    name,
		reader:  reader,
		handler: handler,
		flow:    flow,
		log:     log.With(zap.String("consumer", name)),
	}
}

// Run consume hasta que ctx se cancele o el reader se cierre.
func (c *ConsumerAdapter) Run(ctx context.Context) error {
	c.log.Info("🎧 Consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.log.Info("Consumer stopped")
				return nil
			}
			c.log.Error("Error reading message", zap.Error(err))
			select {
			case <-ctx.Done():
				c.log.Info("Consumer stopped")
				return nil
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		if c.flow != nil {
			c.flow.Record(flowlog.Consumed, msg.Topic, msg.Value)
		}
		c.dispatch(ctx, msg)
	}
}

// dispatch aísla cada mensaje: un pánico en el handler descarta el mensaje, no el consumidor.
func (c *ConsumerAdapter) dispatch(ctx context.Context, msg kafka.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Handler panicked, message dropped",
				zap.String("topic", msg.Topic),
				zap.Any("panic", r))
		}
	}()
	c.handler.HandleMessage(ctx, msg.Topic, msg.Value)
}
