package events

import (
	"context"
	"fmt"
	"io"
	"sync"

	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	"github.com/segmentio/kafka-go"
)

const defaultSubscriptionBuffer = 256

// InMemoryBus sustituye al broker cuando Kafka está desactivado (desarrollo, tests).
// Cada grupo recibe su propia copia de cada topic al que se suscribe, en orden de publicación.
type InMemoryBus struct {
	mu     sync.RWMutex
	topics map[string]struct{}
	// groups[topic] son las suscripciones activas a ese topic.
	groups map[string][]*Subscription
	buffer int
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		topics: make(map[string]struct{}),
		groups: make(map[string][]*Subscription),
		buffer: defaultSubscriptionBuffer,
	}
}

// --- TopicAdmin ---

func (b *InMemoryBus) ListTopics(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.topics))
	for t := range b.topics {
		out = append(out, t)
	}
	return out, nil
}

func (b *InMemoryBus) CreateTopics(ctx context.Context, topics ...sharedBus.TopicSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		if _, ok := b.topics[t.Name]; ok {
			return fmt.Errorf("topic %q already exists", t.Name)
		}
		b.topics[t.Name] = struct{}{}
	}
	return nil
}

// --- Transport ---

// Send entrega a cada grupo suscrito. Bloquea si el buffer de un grupo está lleno.
func (b *InMemoryBus) Send(ctx context.Context, topic string, key, value []byte) error {
	b.mu.RLock()
	_, ok := b.topics[topic]
	subs := append([]*Subscription(nil), b.groups[topic]...)
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown topic %q", topic)
	}

	msg := kafka.Message{Topic: topic, Key: key, Value: value}
	for _, s := range subs {
		if err := s.deliver(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// NewReader crea una suscripción del grupo a los topics dados.
func (b *InMemoryBus) NewReader(groupID string, topics ...string) *Subscription {
	s := &Subscription{
		group: groupID,
		ch:    make(chan kafka.Message, b.buffer),
		done:  make(chan struct{}),
	}
	b.mu.Lock()
	for _, t := range topics {
		b.groups[t] = append(b.groups[t], s)
	}
	b.mu.Unlock()
	return s
}

// Subscription es la vista de un grupo sobre el bus. Cumple MessageReader.
type Subscription struct {
	group string
	ch    chan kafka.Message
	done  chan struct{}
	once  sync.Once
}

func (s *Subscription) deliver(ctx context.Context, msg kafka.Message) error {
	select {
	case <-s.done:
		return nil
	default:
	}
	select {
	case s.ch <- msg:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Subscription) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-s.ch:
		return msg, nil
	case <-s.done:
		return kafka.Message{}, io.EOF
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *Subscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

var (
	_ sharedBus.Transport  = (*InMemoryBus)(nil)
	_ sharedBus.TopicAdmin = (*InMemoryBus)(nil)
	_ MessageReader        = (*Subscription)(nil)
)
