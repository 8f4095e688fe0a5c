package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/davicafu/deliverylab/internal/infra/flowlog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

const defaultBatchSize = 100

// TopicCount agrega mensajes por topic y tipo en una ventana de tiempo.
type TopicCount struct {
	Topic string
	Kind  string
	Count uint64
}

// FlowAnalyticsRepo guarda la traza de mensajes en ClickHouse (tabla order_flow_log).
// Add solo encola; Run vuelca por lotes.
type FlowAnalyticsRepo struct {
	db        *sql.DB
	batchSize int
	mu        sync.Mutex
	pending   []flowlog.Entry
	log       *zap.Logger
}

func NewFlowAnalyticsRepo(addr string, dbName string, log *zap.Logger) (*FlowAnalyticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &FlowAnalyticsRepo{db: conn, batchSize: defaultBatchSize, log: log}, nil
}

// InitSchema crea la tabla si no existe.
func (r *FlowAnalyticsRepo) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS order_flow_log (
			event_time DateTime64(3),
			kind       LowCardinality(String),
			topic      LowCardinality(String),
			payload    String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (topic, kind, event_time);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Add implementa flowlog.Sink.
func (r *FlowAnalyticsRepo) Add(e flowlog.Entry) {
	r.mu.Lock()
	r.pending = append(r.pending, e)
	r.mu.Unlock()
}

// Run vuelca lo pendiente cada interval y una última vez al cancelar ctx.
func (r *FlowAnalyticsRepo) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			r.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Flush inserta lo pendiente en lotes de batchSize. Un lote fallido se descarta.
func (r *FlowAnalyticsRepo) Flush(ctx context.Context) {
	r.mu.Lock()
	entries := r.pending
	r.pending = nil
	r.mu.Unlock()

	for start := 0; start < len(entries); start += r.batchSize {
		end := start + r.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := r.LogBatch(ctx, entries[start:end]); err != nil {
			r.log.Warn("⚠️ Flow analytics batch dropped", zap.Int("size", end-start), zap.Error(err))
		}
	}
}

// LogBatch inserta un lote en una sola transacción.
func (r *FlowAnalyticsRepo) LogBatch(ctx context.Context, entries []flowlog.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO order_flow_log (event_time, kind, topic, payload)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.At, string(e.Kind), e.Topic, string(e.Payload)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for topic %s: %w", e.Topic, err)
		}
	}
	return tx.Commit()
}

// CountByTopic cuenta mensajes por topic y tipo desde since.
func (r *FlowAnalyticsRepo) CountByTopic(ctx context.Context, since time.Time) ([]TopicCount, error) {
	query := `
		SELECT topic, kind, count() AS n
		FROM order_flow_log
		WHERE event_time >= ?
		GROUP BY topic, kind
		ORDER BY topic, kind
	`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopicCount
	for rows.Next() {
		var c TopicCount
		if err := rows.Scan(&c.Topic, &c.Kind, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *FlowAnalyticsRepo) Close() error {
	return r.db.Close()
}

var _ flowlog.Sink = (*FlowAnalyticsRepo)(nil)
