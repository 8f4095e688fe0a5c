package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/deliverylab/shared/events"
)

// Tipos de evento tal y como se guardan en el outbox.
const (
	OrderCreatedEvent           = "order.created"
	OrderUpdatedEvent           = "order.updated"
	RestaurantNotificationEvent = "order.restaurant_notification"
	CustomerNotificationEvent   = "order.customer_notification"
)

const OrderAggregate = "order"

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		OrderCreatedEvent: {
			Type:  reflect.TypeOf(OrderCreated{}),
			Topic: TopicOrderCreated,
		},
		OrderUpdatedEvent: {
			Type:  reflect.TypeOf(OrderUpdated{}),
			Topic: TopicOrderUpdated,
		},
		RestaurantNotificationEvent: {
			Type:  reflect.TypeOf(RestaurantNotification{}),
			Topic: TopicRestaurantNotification,
		},
		CustomerNotificationEvent: {
			Type:  reflect.TypeOf(CustomerNotification{}),
			Topic: TopicCustomerNotification,
		},
	}
}
