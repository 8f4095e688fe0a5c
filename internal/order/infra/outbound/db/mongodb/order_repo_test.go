package mongodb

import (
	"testing"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	sharedDomain "github.com/davicafu/deliverylab/shared/domain"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCriteriaToMongoFilter(t *testing.T) {
	crit := sharedDomain.And(
		orderDomain.RestaurantIDCriteria{ID: "R"},
		orderDomain.NotArchivedCriteria{},
		orderDomain.StatusInCriteria{Statuses: orderDomain.TerminalStatuses()},
	)

	filter := criteriaToMongoFilter(crit)

	assert.Equal(t, bson.D{
		{Key: "restaurant_id", Value: bson.M{"$eq": "R"}},
		{Key: "archived", Value: bson.M{"$ne": true}},
		{Key: "status", Value: bson.M{"$in": orderDomain.TerminalStatuses()}},
	}, filter)
}

func TestCriteriaToMongoFilter_Nil(t *testing.T) {
	assert.Equal(t, bson.D{}, criteriaToMongoFilter(nil))
}

func TestMongoOrderMapping_RoundTrip(t *testing.T) {
	o := &orderDomain.Order{
		ID:              "o1",
		CustomerID:      "C",
		RestaurantID:    "R",
		Items:           []orderDomain.Item{{DishID: "A", Name: "Tortilla", Quantity: 2, Price: 5}},
		Status:          orderDomain.StatusPreparing,
		TotalAmount:     12,
		DeliveryFee:     2,
		DeliveryAddress: &orderDomain.Address{Street: "Calle Mayor 1", City: "Madrid"},
		PaymentMethod:   orderDomain.PaymentCard,
	}

	back := fromMongoOrder(toMongoOrder(o))

	assert.Equal(t, o.ID, back.ID)
	assert.Equal(t, o.Items, back.Items)
	assert.Equal(t, o.DeliveryAddress, back.DeliveryAddress)
	assert.Equal(t, o.Status, back.Status)
}
