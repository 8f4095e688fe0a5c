package domain

import (
	"time"

	sharedBus "github.com/davicafu/deliverylab/shared/platform/bus"
)

// Topics del broker. Todos se provisionan al arrancar con 1 partición,
// lo que da orden total dentro de cada topic (pero no entre topics).
const (
	TopicOrderCreated           = "order-created"
	TopicOrderUpdated           = "order-updated"
	TopicRestaurantNotification = "restaurant-notification"
	TopicCustomerNotification   = "customer-notification"
)

// Grupos de consumidores: cada rol recibe su propia copia completa de cada topic.
const (
	OrderServiceGroup        = "order-service-group"
	RestaurantServiceGroup   = "restaurant-service-group"
	NotificationServiceGroup = "notification-service-group"
)

// Valores del campo "type" de las notificaciones.
const (
	NotificationNewOrder          = "NEW_ORDER"
	NotificationOrderStatusUpdate = "ORDER_STATUS_UPDATE"
)

// Topics devuelve los cuatro topics que el sistema necesita.
func Topics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderUpdated,
		TopicRestaurantNotification,
		TopicCustomerNotification,
	}
}

// --- Payloads (contratos de integración, planos y en JSON) ---

type OrderCreated struct {
	OrderID      string      `json:"order_id"`
	RestaurantID string      `json:"restaurant_id"`
	CustomerID   string      `json:"customer_id"`
	Status       OrderStatus `json:"status"`
	Timestamp    time.Time   `json:"timestamp"`
}

type OrderUpdated struct {
	OrderID        string      `json:"order_id"`
	PreviousStatus OrderStatus `json:"previous_status"`
	NewStatus      OrderStatus `json:"new_status"`
	RestaurantID   string      `json:"restaurant_id"`
	CustomerID     string      `json:"customer_id"`
	Timestamp      time.Time   `json:"timestamp"`
}

type RestaurantNotification struct {
	Type         string    `json:"type"`
	OrderID      string    `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	Timestamp    time.Time `json:"timestamp"`
}

type CustomerNotification struct {
	Type       string      `json:"type"`
	OrderID    string      `json:"order_id"`
	Status     OrderStatus `json:"status"`
	CustomerID string      `json:"customer_id"`
	Timestamp  time.Time   `json:"timestamp"`
}

func (e *OrderCreated) PartitionKey() string           { return e.OrderID }
func (e *OrderUpdated) PartitionKey() string           { return e.OrderID }
func (e *RestaurantNotification) PartitionKey() string { return e.OrderID }
func (e *CustomerNotification) PartitionKey() string   { return e.OrderID }

// --- Constructores a partir del pedido ---

func NewOrderCreated(o *Order, at time.Time) *OrderCreated {
	return &OrderCreated{
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		CustomerID:   o.CustomerID,
		Status:       o.Status,
		Timestamp:    at,
	}
}

func NewRestaurantNotification(o *Order, at time.Time) *RestaurantNotification {
	return &RestaurantNotification{
		Type:         NotificationNewOrder,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		Timestamp:    at,
	}
}

func NewOrderUpdated(o *Order, previous OrderStatus, at time.Time) *OrderUpdated {
	return &OrderUpdated{
		OrderID:        o.ID,
		PreviousStatus: previous,
		NewStatus:      o.Status,
		RestaurantID:   o.RestaurantID,
		CustomerID:     o.CustomerID,
		Timestamp:      at,
	}
}

func NewCustomerNotification(o *Order, at time.Time) *CustomerNotification {
	return &CustomerNotification{
		Type:       NotificationOrderStatusUpdate,
		OrderID:    o.ID,
		Status:     o.Status,
		CustomerID: o.CustomerID,
		Timestamp:  at,
	}
}

var (
	_ sharedBus.Keyer = (*OrderCreated)(nil)
	_ sharedBus.Keyer = (*OrderUpdated)(nil)
	_ sharedBus.Keyer = (*RestaurantNotification)(nil)
	_ sharedBus.Keyer = (*CustomerNotification)(nil)
)
