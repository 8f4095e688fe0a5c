package mocks

import (
	"context"
	"fmt"
	"sync"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
)

// InMemoryCatalog simula la capa CRUD de clientes, restaurantes y platos.
type InMemoryCatalog struct {
	Customers   map[string]*orderDomain.Customer
	Restaurants map[string]*orderDomain.Restaurant
	Dishes      map[string]*orderDomain.Dish
	mu          sync.RWMutex
}

var _ orderDomain.CatalogRepository = (*InMemoryCatalog)(nil)

func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		Customers:   make(map[string]*orderDomain.Customer),
		Restaurants: make(map[string]*orderDomain.Restaurant),
		Dishes:      make(map[string]*orderDomain.Dish),
	}
}

func (c *InMemoryCatalog) AddCustomer(cu *orderDomain.Customer) *InMemoryCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Customers[cu.ID] = cu
	return c
}

func (c *InMemoryCatalog) AddRestaurant(r *orderDomain.Restaurant) *InMemoryCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Restaurants[r.ID] = r
	return c
}

func (c *InMemoryCatalog) AddDish(d *orderDomain.Dish) *InMemoryCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Dishes[d.ID] = d
	return c
}

func (c *InMemoryCatalog) GetCustomer(ctx context.Context, id string) (*orderDomain.Customer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cu, ok := c.Customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orderDomain.ErrCustomerNotFound, id)
	}
	return cu, nil
}

func (c *InMemoryCatalog) GetRestaurant(ctx context.Context, id string) (*orderDomain.Restaurant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.Restaurants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orderDomain.ErrRestaurantNotFound, id)
	}
	return r, nil
}

func (c *InMemoryCatalog) GetDish(ctx context.Context, id string) (*orderDomain.Dish, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.Dishes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orderDomain.ErrDishNotFound, id)
	}
	return d, nil
}

// NewSampleCatalog prepara el escenario típico: cliente C, restaurante R con envío 2.00
// y el plato A a 5.00.
func NewSampleCatalog() *InMemoryCatalog {
	return NewInMemoryCatalog().
		AddCustomer(&orderDomain.Customer{ID: "C", Name: "Ana", Address: &orderDomain.Address{Street: "Calle Mayor 1", City: "Madrid"}}).
		AddRestaurant(&orderDomain.Restaurant{ID: "R", Name: "La Tasca", DeliveryFee: 2.00}).
		AddRestaurant(&orderDomain.Restaurant{ID: "R2", Name: "Otro", DeliveryFee: 1.00}).
		AddDish(&orderDomain.Dish{ID: "A", RestaurantID: "R", Name: "Tortilla", Price: 5.00, Available: true}).
		AddDish(&orderDomain.Dish{ID: "B", RestaurantID: "R2", Name: "Paella", Price: 9.50, Available: true})
}
