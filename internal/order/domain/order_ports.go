package domain

import (
	"context"
	"errors"
	"fmt"

	sharedDomain "github.com/davicafu/deliverylab/shared/domain"
	sharedQuery "github.com/davicafu/deliverylab/shared/platform/query"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrDishNotFound       = errors.New("dish not found")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidTransition  = errors.New("invalid status transition")
	// ErrStatusConflict: el estado almacenado ya no es el esperado (otra escritura llegó antes).
	ErrStatusConflict = errors.New("order status changed concurrently")
	ErrInvalidOrder   = errors.New("invalid order")
)

// --- Repositorio de pedidos ---
//
// Todas las mutaciones de estado son condicionales (compare-and-swap sobre el estado
// esperado). Los eventos opcionales se escriben en el outbox dentro de la misma
// transacción; si no se pasan, la escritura es de un único documento.
type OrderRepository interface {
	Create(ctx context.Context, o *Order, evts ...sharedDomain.OutboxEvent) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// CompareAndSetStatus pasa de expected a next. Devuelve ErrOrderNotFound si no existe
	// y ErrStatusConflict si el estado actual no es expected.
	CompareAndSetStatus(ctx context.Context, id string, expected, next OrderStatus, evts ...sharedDomain.OutboxEvent) (*Order, error)
	ListByCriteria(ctx context.Context, criteria sharedDomain.Criteria, pagination sharedQuery.Pagination, sort sharedQuery.Sort) ([]*Order, error)
	// ArchiveCompleted marca archived=true en los pedidos terminales no archivados del restaurante.
	ArchiveCompleted(ctx context.Context, restaurantID string) (int64, error)
}

// CatalogRepository da acceso de solo lectura a clientes, restaurantes y platos,
// que pertenecen a la capa CRUD.
type CatalogRepository interface {
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	GetRestaurant(ctx context.Context, id string) (*Restaurant, error)
	GetDish(ctx context.Context, id string) (*Dish, error)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

func OrderCacheKeyByID(id string) string {
	return fmt.Sprintf("order:id:%s", id)
}
