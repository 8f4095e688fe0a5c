package events

import (
	"context"
	"encoding/json"

	"github.com/davicafu/deliverylab/internal/infra/flowlog"
	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	"go.uber.org/zap"
)

// FlowRecorder es lo que el publisher y los consumidores necesitan de la traza de mensajes.
type FlowRecorder interface {
	Record(kind flowlog.Kind, topic string, payload []byte)
}

// Publisher serializa y entrega un evento a un topic. Nunca devuelve error: el
// resultado es un booleano y el llamador decide si le importa.
type Publisher struct {
	transport sharedBus.Transport
	flow      FlowRecorder
	log       *zap.Logger
}

func NewPublisher(transport sharedBus.Transport, flow FlowRecorder, log *zap.Logger) *Publisher {
	return &Publisher{transport: transport, flow: flow, log: log}
}

func (p *Publisher) Publish(ctx context.Context, topic string, event interface{}) bool {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error("❌ Failed to serialize event", zap.String("topic", topic), zap.Error(err))
		return false
	}

	// Se registra antes de salir a la red, haya éxito o no.
	if p.flow != nil {
		p.flow.Record(flowlog.Produced, topic, data)
	}

	var key []byte
	if keyer, ok := event.(sharedBus.Keyer); ok {
		key = []byte(keyer.PartitionKey())
	}

	if err := p.transport.Send(ctx, topic, key, data); err != nil {
		p.log.Error("❌ Failed sending message", zap.String("topic", topic), zap.Error(err))
		return false
	}

	p.log.Debug("Message sent", zap.String("topic", topic))
	return true
}

var _ sharedBus.EventPublisher = (*Publisher)(nil)
