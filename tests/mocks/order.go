package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	sharedDomain "github.com/davicafu/deliverylab/shared/domain"
	sharedQuery "github.com/davicafu/deliverylab/shared/platform/query"
	"github.com/google/uuid"
)

// InMemoryOrderRepo simula OrderRepository con outbox incluido.
// Guarda copias: nadie fuera del repo puede mutar un pedido almacenado.
type InMemoryOrderRepo struct {
	Orders map[string]*orderDomain.Order
	Outbox []sharedDomain.OutboxEvent
	// FailNext, si no es nil, se devuelve en la siguiente escritura.
	FailNext error
	mu       sync.Mutex
}

func NewInMemoryOrderRepo() *InMemoryOrderRepo {
	return &InMemoryOrderRepo{
		Orders: make(map[string]*orderDomain.Order),
		Outbox: []sharedDomain.OutboxEvent{},
	}
}

var (
	_ orderDomain.OrderRepository   = (*InMemoryOrderRepo)(nil)
	_ sharedDomain.OutboxRepository = (*InMemoryOrderRepo)(nil)
)

func (r *InMemoryOrderRepo) Create(ctx context.Context, o *orderDomain.Order, evts ...sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.Orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	r.Orders[o.ID] = cloneOrder(o)
	r.Outbox = append(r.Outbox, evts...)
	return nil
}

func (r *InMemoryOrderRepo) GetByID(ctx context.Context, id string) (*orderDomain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.Orders[id]
	if !ok {
		return nil, orderDomain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *InMemoryOrderRepo) CompareAndSetStatus(ctx context.Context, id string, expected, next orderDomain.OrderStatus, evts ...sharedDomain.OutboxEvent) (*orderDomain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	o, ok := r.Orders[id]
	if !ok {
		return nil, orderDomain.ErrOrderNotFound
	}
	if o.Status != expected {
		return nil, orderDomain.ErrStatusConflict
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	r.Outbox = append(r.Outbox, evts...)
	return cloneOrder(o), nil
}

func (r *InMemoryOrderRepo) ListByCriteria(
	ctx context.Context,
	criteria sharedDomain.Criteria,
	pagination sharedQuery.Pagination,
	sorts sharedQuery.Sort,
) ([]*orderDomain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []*orderDomain.Order
	for _, o := range r.Orders {
		if criteria == nil || matchOrderCriterion(o, criteria.ToConditions()) {
			list = append(list, cloneOrder(o))
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return compareOrders(list[i], list[j], sorts.Field, sorts.Desc)
	})

	if p, ok := pagination.(sharedQuery.OffsetPagination); ok {
		start := p.Offset
		if start > len(list) {
			return []*orderDomain.Order{}, nil
		}
		end := start + p.Limit
		if end > len(list) {
			end = len(list)
		}
		return list[start:end], nil
	}
	return list, nil
}

func (r *InMemoryOrderRepo) ArchiveCompleted(ctx context.Context, restaurantID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return 0, err
	}
	var n int64
	for _, o := range r.Orders {
		if o.RestaurantID == restaurantID && o.Status.IsTerminal() && !o.Archived {
			o.Archived = true
			n++
		}
	}
	return n, nil
}

// Put inserta un pedido tal cual, sin validaciones (preparación de tests).
func (r *InMemoryOrderRepo) Put(o *orderDomain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Orders[o.ID] = cloneOrder(o)
}

// StatusOf devuelve el estado almacenado, o "" si no existe.
func (r *InMemoryOrderRepo) StatusOf(id string) orderDomain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.Orders[id]; ok {
		return o.Status
	}
	return ""
}

func (r *InMemoryOrderRepo) takeFailure() error {
	err := r.FailNext
	r.FailNext = nil
	return err
}

// --- Outbox ---

func (r *InMemoryOrderRepo) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []sharedDomain.OutboxEvent
	for _, evt := range r.Outbox {
		if evt.Processed {
			continue
		}
		pending = append(pending, evt)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (r *InMemoryOrderRepo) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Outbox {
		if r.Outbox[i].ID == id {
			r.Outbox[i].Processed = true
			return nil
		}
	}
	return fmt.Errorf("outbox event not found: %s", id)
}

// --- Filtrado y orden del mock ---

func matchOrderCriterion(o *orderDomain.Order, conds []sharedDomain.Criterion) bool {
	for _, cond := range conds {
		var match bool
		switch strings.ToLower(cond.Field) {
		case "status":
			switch v := cond.Value.(type) {
			case orderDomain.OrderStatus:
				match = o.Status == v
			case []orderDomain.OrderStatus:
				for _, st := range v {
					if o.Status == st {
						match = true
						break
					}
				}
			}
		case "restaurant_id":
			match = o.RestaurantID == fmt.Sprintf("%v", cond.Value)
		case "customer_id":
			match = o.CustomerID == fmt.Sprintf("%v", cond.Value)
		case "archived":
			v, _ := cond.Value.(bool)
			if cond.Op == sharedDomain.OpNe {
				match = o.Archived != v
			} else {
				match = o.Archived == v
			}
		}
		if !match {
			return false
		}
	}
	return true
}

func compareOrders(a, b *orderDomain.Order, field string, desc bool) bool {
	var less bool
	switch strings.ToLower(field) {
	case "created_at":
		less = a.CreatedAt.Before(b.CreatedAt)
	case "status":
		less = a.Status < b.Status
	default:
		less = a.ID < b.ID
	}
	if desc {
		return !less
	}
	return less
}

func cloneOrder(o *orderDomain.Order) *orderDomain.Order {
	c := *o
	c.Items = append([]orderDomain.Item(nil), o.Items...)
	if o.DeliveryAddress != nil {
		addr := *o.DeliveryAddress
		c.DeliveryAddress = &addr
	}
	return &c
}
