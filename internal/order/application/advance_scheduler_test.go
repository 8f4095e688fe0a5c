package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAdvanceScheduler_Fires(t *testing.T) {
	s := NewAdvanceScheduler(zap.NewNop())
	defer s.Stop()

	done := make(chan struct{})
	assert.True(t, s.Schedule("o1", 10*time.Millisecond, orderDomain.StatusPlaced, func(ctx context.Context) {
		close(done)
	}))
	assert.True(t, s.Pending("o1"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled task did not fire")
	}
	assert.Eventually(t, func() bool { return !s.Pending("o1") }, time.Second, 5*time.Millisecond)
}

func TestAdvanceScheduler_ObserveCancelsStaleTask(t *testing.T) {
	s := NewAdvanceScheduler(zap.NewNop())
	defer s.Stop()

	var fired int32
	s.Schedule("o1", 50*time.Millisecond, orderDomain.StatusPlaced, func(ctx context.Context) {
		atomic.AddInt32(&fired, 1)
	})

	// El mismo estado esperado no cancela.
	assert.False(t, s.Observe("o1", orderDomain.StatusPlaced))
	assert.True(t, s.Pending("o1"))

	// Un humano movió el pedido: la tarea ya no tiene sentido.
	assert.True(t, s.Observe("o1", orderDomain.StatusDelivered))
	assert.False(t, s.Pending("o1"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestAdvanceScheduler_ScheduleReplacesPending(t *testing.T) {
	s := NewAdvanceScheduler(zap.NewNop())
	defer s.Stop()

	var first, second int32
	s.Schedule("o1", 30*time.Millisecond, orderDomain.StatusPlaced, func(ctx context.Context) {
		atomic.AddInt32(&first, 1)
	})
	s.Schedule("o1", 30*time.Millisecond, orderDomain.StatusPreparing, func(ctx context.Context) {
		atomic.AddInt32(&second, 1)
	})

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&second) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
}

func TestAdvanceScheduler_CancelAndStop(t *testing.T) {
	s := NewAdvanceScheduler(zap.NewNop())

	var fired int32
	s.Schedule("o1", 30*time.Millisecond, orderDomain.StatusPlaced, func(ctx context.Context) {
		atomic.AddInt32(&fired, 1)
	})
	s.Schedule("o2", 30*time.Millisecond, orderDomain.StatusPlaced, func(ctx context.Context) {
		atomic.AddInt32(&fired, 1)
	})

	assert.True(t, s.Cancel("o1"))
	assert.False(t, s.Cancel("o1"))

	s.Stop()
	assert.False(t, s.Pending("o2"))
	assert.False(t, s.Schedule("o3", time.Millisecond, orderDomain.StatusPlaced, func(ctx context.Context) {}))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestAdvanceScheduler_StopCancelsRunningTaskContext(t *testing.T) {
	s := NewAdvanceScheduler(zap.NewNop())

	started := make(chan struct{})
	var sawCancel int32
	s.Schedule("o1", time.Millisecond, orderDomain.StatusPlaced, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		atomic.StoreInt32(&sawCancel, 1)
	})

	<-started
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&sawCancel))
}
