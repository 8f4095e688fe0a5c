package domain

import (
	"fmt"
	"time"

	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

func (p PaymentMethod) Valid() bool {
	return p == "" || p == PaymentCard || p == PaymentCash
}

// Item es una línea del pedido. Name y Price son copias tomadas al crear el pedido:
// no siguen los cambios posteriores del plato.
type Item struct {
	DishID   string  `json:"dish_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

type Order struct {
	ID              string        `json:"id"`
	CustomerID      string        `json:"customer_id"`
	RestaurantID    string        `json:"restaurant_id"`
	Items           []Item        `json:"items"`
	Status          OrderStatus   `json:"status"`
	TotalAmount     float64       `json:"total_amount"`
	DeliveryFee     float64       `json:"delivery_fee"`
	DeliveryAddress *Address      `json:"delivery_address,omitempty"`
	PaymentMethod   PaymentMethod `json:"payment_method,omitempty"`
	Notes           string        `json:"order_notes,omitempty"`
	Archived        bool          `json:"archived"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (o *Order) PartitionKey() string {
	return o.ID
}

// ItemLine es lo que pide el cliente: un plato ya resuelto y una cantidad.
type ItemLine struct {
	Dish     *Dish
	Quantity int
}

type NewOrderParams struct {
	Customer        *Customer
	Restaurant      *Restaurant
	Lines           []ItemLine
	DeliveryAddress *Address
	PaymentMethod   PaymentMethod
	Notes           string
}

// NewOrder construye un pedido en estado placed calculando el total
// (suma de precio*cantidad + gastos de envío) con aritmética decimal.
func NewOrder(p NewOrderParams) (*Order, error) {
	if p.Customer == nil || p.Restaurant == nil {
		return nil, fmt.Errorf("%w: customer and restaurant are required", ErrInvalidOrder)
	}
	if len(p.Lines) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}
	if !p.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidOrder, p.PaymentMethod)
	}

	total := decimal.Zero
	items := make([]Item, 0, len(p.Lines))
	for _, line := range p.Lines {
		if line.Dish == nil {
			return nil, fmt.Errorf("%w: nil dish", ErrInvalidOrder)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for dish %s must be >= 1", ErrInvalidOrder, line.Dish.ID)
		}
		price := decimal.NewFromFloat(line.Dish.Price)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, Item{
			DishID:   line.Dish.ID,
			Name:     line.Dish.Name,
			Quantity: line.Quantity,
			Price:    line.Dish.Price,
		})
	}
	fee := decimal.NewFromFloat(p.Restaurant.DeliveryFee)
	total = total.Add(fee).Round(2)

	address := p.DeliveryAddress
	if address == nil {
		address = p.Customer.Address
	}

	now := time.Now().UTC()
	return &Order{
		ID:              uuid.NewString(),
		CustomerID:      p.Customer.ID,
		RestaurantID:    p.Restaurant.ID,
		Items:           items,
		Status:          StatusPlaced,
		TotalAmount:     total.InexactFloat64(),
		DeliveryFee:     fee.Round(2).InexactFloat64(),
		DeliveryAddress: address,
		PaymentMethod:   p.PaymentMethod,
		Notes:           p.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// --- Colaboradores externos (solo lo que el núcleo de eventos necesita) ---

type Customer struct {
	ID      string
	Name    string
	Address *Address
}

type Restaurant struct {
	ID          string
	Name        string
	DeliveryFee float64
}

type Dish struct {
	ID           string
	RestaurantID string
	Name         string
	Price        float64
	Available    bool
}

// Verificación estática
var _ sharedBus.Keyer = (*Order)(nil)
