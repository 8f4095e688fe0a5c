package events

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultLeaderWait  = 30 * time.Second
	leaderPollInterval = 200 * time.Millisecond
)

type KafkaConfig struct {
	Brokers     []string
	ClientID    string
	DialTimeout time.Duration
	// LeaderWait limita la espera de elección de líder tras crear topics.
	LeaderWait time.Duration
}

// KafkaClient agrupa el writer compartido y los readers creados a partir de él.
// Se construye con ConnectKafka y se cierra con Close.
type KafkaClient struct {
	cfg     KafkaConfig
	dialer  *kafka.Dialer
	writer  *kafka.Writer
	mu      sync.Mutex
	readers []*kafka.Reader
	log     *zap.Logger
}

// ConnectKafka comprueba que el clúster responde, provisiona los topics y prepara
// el writer. Cualquier error debe abortar el arranque.
func ConnectKafka(ctx context.Context, cfg KafkaConfig, topics []string, log *zap.Logger) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.LeaderWait <= 0 {
		cfg.LeaderWait = defaultLeaderWait
	}

	dialer := &kafka.Dialer{Timeout: cfg.DialTimeout, ClientID: cfg.ClientID}
	admin := &KafkaAdmin{dialer: dialer, brokers: cfg.Brokers, leaderWait: cfg.LeaderWait}

	conn, err := admin.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("kafka: connect: %w", err)
	}
	conn.Close()
	log.Info("✅ Kafka conectado", zap.Strings("brokers", cfg.Brokers))

	if _, err := EnsureTopics(ctx, admin, topics, log); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  1,
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID, DialTimeout: cfg.DialTimeout},
	}

	return &KafkaClient{
		cfg:    cfg,
		dialer: dialer,
		writer: writer,
		log:    log,
	}, nil
}

// Send implementa sharedBus.Transport. Un único intento.
func (c *KafkaClient) Send(ctx context.Context, topic string, key, value []byte) error {
	return c.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: value})
}

// NewReader crea un reader de grupo suscrito a varios topics. El cliente lo cierra en Close.
func (c *KafkaClient) NewReader(groupID string, topics ...string) *kafka.Reader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		Dialer:      c.dialer,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})

	c.mu.Lock()
	c.readers = append(c.readers, r)
	c.mu.Unlock()
	return r
}

// Close cierra writer y readers, aunque alguno falle.
func (c *KafkaClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if err := c.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("writer: %w", err))
	}
	for _, r := range c.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("reader %s: %w", r.Config().GroupID, err))
		}
	}
	c.readers = nil
	c.log.Info("🔌 Kafka clients disconnected")
	return errors.Join(errs...)
}

// --- Administración de topics ---

// KafkaAdmin implementa sharedBus.TopicAdmin sobre conexiones directas al broker.
type KafkaAdmin struct {
	dialer     *kafka.Dialer
	brokers    []string
	leaderWait time.Duration
}

func (a *KafkaAdmin) dial(ctx context.Context) (*kafka.Conn, error) {
	var lastErr error
	for _, b := range a.brokers {
		conn, err := a.dialer.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (a *KafkaAdmin) ListTopics(ctx context.Context) ([]string, error) {
	conn, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var topics []string
	for _, p := range partitions {
		if _, ok := seen[p.Topic]; ok {
			continue
		}
		seen[p.Topic] = struct{}{}
		topics = append(topics, p.Topic)
	}
	return topics, nil
}

// CreateTopics crea los topics a través del controlador y espera a que todas sus
// particiones tengan líder.
func (a *KafkaAdmin) CreateTopics(ctx context.Context, topics ...sharedBus.TopicSpec) error {
	if len(topics) == 0 {
		return nil
	}
	conn, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: controller: %w", err)
	}
	ctrl, err := a.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka: dial controller: %w", err)
	}
	defer ctrl.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     t.NumPartitions,
			ReplicationFactor: t.ReplicationFactor,
		})
		names = append(names, t.Name)
	}
	if err := ctrl.CreateTopics(configs...); err != nil {
		return err
	}
	return a.waitForLeaders(ctx, names)
}

func (a *KafkaAdmin) waitForLeaders(ctx context.Context, names []string) error {
	ctx, cancel := context.WithTimeout(ctx, a.leaderWait)
	defer cancel()

	ticker := time.NewTicker(leaderPollInterval)
	defer ticker.Stop()
	for {
		if a.leadersReady(ctx, names) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka: waiting for topic leaders %v: %w", names, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *KafkaAdmin) leadersReady(ctx context.Context, names []string) bool {
	conn, err := a.dial(ctx)
	if err != nil {
		return false
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(names...)
	if err != nil || len(partitions) == 0 {
		return false
	}
	withLeader := make(map[string]bool)
	for _, p := range partitions {
		if p.Leader.Host == "" || p.Leader.ID < 0 {
			return false
		}
		withLeader[p.Topic] = true
	}
	return len(withLeader) == len(names)
}

var (
	_ sharedBus.Transport  = (*KafkaClient)(nil)
	_ sharedBus.TopicAdmin = (*KafkaAdmin)(nil)
	_ MessageReader        = (*kafka.Reader)(nil)
)
