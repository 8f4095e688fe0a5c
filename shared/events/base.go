package events

import (
	"reflect"
)

// EventMetadata asocia un tipo de evento con su payload concreto y su topic.
// El relayer de outbox la usa para decodificar y enrutar eventos persistidos.
type EventMetadata struct {
	Type  reflect.Type
	Topic string
}
