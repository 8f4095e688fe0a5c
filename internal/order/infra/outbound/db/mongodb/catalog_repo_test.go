package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCatalogIDFilter_ObjectIDHex(t *testing.T) {
	oid := primitive.NewObjectID()

	filter := catalogIDFilter(oid.Hex())

	assert.Equal(t, bson.M{"_id": bson.M{"$in": bson.A{oid, oid.Hex()}}}, filter)
}

func TestCatalogIDFilter_PlainString(t *testing.T) {
	assert.Equal(t, bson.M{"_id": "R"}, catalogIDFilter("R"))
}
