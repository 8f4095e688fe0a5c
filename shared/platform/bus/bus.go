package bus

import "context"

// Keyer lo implementan los eventos que deben ir siempre a la misma partición.
type Keyer interface {
	PartitionKey() string
}

// Transport entrega bytes ya serializados a un topic. Un único intento: los reintentos,
// si los hay, son responsabilidad del llamador (p.ej. el relayer de outbox).
type Transport interface {
	Send(ctx context.Context, topic string, key, value []byte) error
}

// EventPublisher es el contrato "best-effort" que usan los casos de uso:
// nunca devuelve error, solo si el mensaje salió o no.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event interface{}) bool
}

// TopicSpec describe un topic a provisionar.
type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

// TopicAdmin es el subconjunto de operaciones de administración del broker que necesitamos.
type TopicAdmin interface {
	ListTopics(ctx context.Context) ([]string, error)
	CreateTopics(ctx context.Context, topics ...TopicSpec) error
}

// MessageHandler define la interfaz que debe cumplir cualquier consumidor de eventos.
type MessageHandler interface {
	HandleMessage(ctx context.Context, topic string, payload []byte)
}
