package application

import (
	"context"
	"sync"
	"time"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	"go.uber.org/zap"
)

// AdvanceFunc es el trabajo diferido. Recibe un contexto que se cancela si la tarea
// se anula mientras se ejecuta.
type AdvanceFunc func(ctx context.Context)

type scheduledAdvance struct {
	seq    uint64
	from   orderDomain.OrderStatus
	timer  *time.Timer
	ctx    context.Context
	cancel context.CancelFunc
}

// AdvanceScheduler guarda, como mucho, una tarea pendiente por pedido.
type AdvanceScheduler struct {
	mu      sync.Mutex
	tasks   map[string]*scheduledAdvance
	seq     uint64
	stopped bool
	wg      sync.WaitGroup
	// root se cancela en Stop, también para las tareas que ya están ejecutándose.
	root    context.Context
	stopAll context.CancelFunc
	log     *zap.Logger
}

func NewAdvanceScheduler(log *zap.Logger) *AdvanceScheduler {
	root, stopAll := context.WithCancel(context.Background())
	return &AdvanceScheduler{
		tasks:   make(map[string]*scheduledAdvance),
		root:    root,
		stopAll: stopAll,
		log:     log,
	}
}

// Schedule programa fn tras delay. expectedFrom es el estado en el que debe seguir
// el pedido para que la tarea tenga sentido (ver Observe). Sustituye cualquier tarea
// pendiente del mismo pedido. Devuelve false si el scheduler ya está parado.
func (s *AdvanceScheduler) Schedule(orderID string, delay time.Duration, expectedFrom orderDomain.OrderStatus, fn AdvanceFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if prev, ok := s.tasks[orderID]; ok {
		s.cancelLocked(orderID, prev)
	}

	s.seq++
	ctx, cancel := context.WithCancel(s.root)
	task := &scheduledAdvance{seq: s.seq, from: expectedFrom, ctx: ctx, cancel: cancel}
	s.wg.Add(1)
	task.timer = time.AfterFunc(delay, func() { s.fire(orderID, task, fn) })
	s.tasks[orderID] = task

	s.log.Debug("⏱️ Auto-advance scheduled",
		zap.String("order_id", orderID),
		zap.String("expected_from", string(expectedFrom)),
		zap.Duration("delay", delay))
	return true
}

func (s *AdvanceScheduler) fire(orderID string, task *scheduledAdvance, fn AdvanceFunc) {
	defer s.wg.Done()

	s.mu.Lock()
	if cur, ok := s.tasks[orderID]; ok && cur.seq == task.seq {
		delete(s.tasks, orderID)
	}
	s.mu.Unlock()

	if task.ctx.Err() != nil {
		return
	}
	defer task.cancel()
	fn(task.ctx)
}

// Cancel anula la tarea pendiente del pedido, si existe.
func (s *AdvanceScheduler) Cancel(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[orderID]
	if !ok {
		return false
	}
	s.cancelLocked(orderID, task)
	return true
}

// Observe informa de un estado real del pedido. Si hay una tarea pendiente que
// esperaba otro estado de partida, ya no tiene sentido y se cancela.
func (s *AdvanceScheduler) Observe(orderID string, status orderDomain.OrderStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[orderID]
	if !ok || task.from == status {
		return false
	}
	s.cancelLocked(orderID, task)
	s.log.Info("🛑 Pending auto-advance cancelled",
		zap.String("order_id", orderID),
		zap.String("expected_from", string(task.from)),
		zap.String("observed", string(status)))
	return true
}

// Pending indica si hay una tarea programada para el pedido.
func (s *AdvanceScheduler) Pending(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[orderID]
	return ok
}

// Stop cancela todo lo pendiente y espera a las tareas en curso.
func (s *AdvanceScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, task := range s.tasks {
		s.cancelLocked(id, task)
	}
	s.mu.Unlock()
	s.stopAll()

	s.wg.Wait()
}

// cancelLocked requiere s.mu.
func (s *AdvanceScheduler) cancelLocked(orderID string, task *scheduledAdvance) {
	task.cancel()
	if task.timer.Stop() {
		// El callback no llegará a ejecutarse.
		s.wg.Done()
	}
	delete(s.tasks, orderID)
}
