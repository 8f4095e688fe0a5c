package events

import (
	"context"
	"fmt"

	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	"go.uber.org/zap"
)

// Todos los topics llevan una partición (orden total por topic) y factor de replicación 1.
const (
	topicPartitions  = 1
	topicReplication = 1
)

// EnsureTopics crea los topics que falten y devuelve cuáles creó. Es idempotente:
// si ya existen todos no crea nada.
func EnsureTopics(ctx context.Context, admin sharedBus.TopicAdmin, required []string, log *zap.Logger) ([]string, error) {
	existing, err := admin.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	have := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		have[t] = struct{}{}
	}

	var missing []sharedBus.TopicSpec
	var names []string
	for _, t := range required {
		if _, ok := have[t]; ok {
			continue
		}
		have[t] = struct{}{}
		missing = append(missing, sharedBus.TopicSpec{
			Name:              t,
			NumPartitions:     topicPartitions,
			ReplicationFactor: topicReplication,
		})
		names = append(names, t)
	}

	if len(missing) == 0 {
		log.Info("Topics already provisioned", zap.Strings("topics", required))
		return nil, nil
	}
	if err := admin.CreateTopics(ctx, missing...); err != nil {
		return nil, fmt.Errorf("create topics %v: %w", names, err)
	}
	log.Info("✅ Created topics", zap.Strings("topics", names))
	return names, nil
}
