package mocks

import (
	"context"
	"encoding/json"
	"sync"

	sharedDomain "github.com/davicafu/deliverylab/shared/domain"
	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// PublishedMessage es lo que RecordingPublisher ha visto salir.
type PublishedMessage struct {
	Topic string
	Event interface{}
	Raw   []byte
}

// RecordingPublisher guarda cada publicación. Si Fail es true devuelve false
// (pero registra igualmente el intento).
type RecordingPublisher struct {
	Messages []PublishedMessage
	Fail     bool
	mu       sync.Mutex
}

var _ sharedBus.EventPublisher = (*RecordingPublisher)(nil)

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(ctx context.Context, topic string, event interface{}) bool {
	raw, _ := json.Marshal(event)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, PublishedMessage{Topic: topic, Event: event, Raw: raw})
	return !p.Fail
}

// OnTopic devuelve los mensajes de un topic, en orden de publicación.
func (p *RecordingPublisher) OnTopic(topic string) []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedMessage
	for _, m := range p.Messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = nil
}

// --- Mocks de testify ---

// MockOutboxRepository simula el repo de outbox.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPublisher simula un publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, event interface{}) bool {
	args := m.Called(ctx, topic, event)
	return args.Bool(0)
}

// MockTransport simula el envío de bytes al broker.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, topic string, key, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

// MockTopicAdmin simula la administración de topics.
type MockTopicAdmin struct {
	mock.Mock
}

func (m *MockTopicAdmin) ListTopics(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTopicAdmin) CreateTopics(ctx context.Context, topics ...sharedBus.TopicSpec) error {
	args := m.Called(ctx, topics)
	return args.Error(0)
}
