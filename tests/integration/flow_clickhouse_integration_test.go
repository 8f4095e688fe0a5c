package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/davicafu/deliverylab/internal/infra/analytics/clickhouse"
	"github.com/davicafu/deliverylab/internal/infra/flowlog"
	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFlowAnalyticsIntegration_FlushAndCount(t *testing.T) {
	addr := os.Getenv("CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("CLICKHOUSE_ADDR not set")
	}
	ctx := context.Background()

	repo, err := clickhouse.NewFlowAnalyticsRepo(addr, "default", zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.InitSchema(ctx))

	since := time.Now().UTC().Add(-time.Second)
	topic := orderDomain.TopicOrderCreated
	repo.Add(flowlog.Entry{At: time.Now().UTC(), Kind: flowlog.Produced, Topic: topic, Payload: []byte(`{"order_id":"o1"}`)})
	repo.Add(flowlog.Entry{At: time.Now().UTC(), Kind: flowlog.Consumed, Topic: topic, Payload: []byte(`{"order_id":"o1"}`)})
	repo.Flush(ctx)

	counts, err := repo.CountByTopic(ctx, since)
	require.NoError(t, err)

	byKind := map[string]uint64{}
	for _, c := range counts {
		if c.Topic == topic {
			byKind[c.Kind] += c.Count
		}
	}
	assert.GreaterOrEqual(t, byKind[string(flowlog.Produced)], uint64(1))
	assert.GreaterOrEqual(t, byKind[string(flowlog.Consumed)], uint64(1))
}
