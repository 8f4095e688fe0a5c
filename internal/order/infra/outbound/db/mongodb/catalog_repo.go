package mongodb

import (
	"context"
	"errors"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepoMongoDB lee clientes, restaurantes y platos. Esas colecciones las
// mantiene la capa CRUD (Mongoose, con _id ObjectId); aquí solo se consultan.
// Los _id ObjectId se decodifican como su hex en los campos string.
type CatalogRepoMongoDB struct {
	customers   *mongo.Collection
	restaurants *mongo.Collection
	dishes      *mongo.Collection
}

func NewCatalogRepoMongoDB(client *mongo.Client, dbName string) *CatalogRepoMongoDB {
	db := client.Database(dbName)
	return &CatalogRepoMongoDB{
		customers:   db.Collection("customers"),
		restaurants: db.Collection("restaurants"),
		dishes:      db.Collection("dishes"),
	}
}

type mongoCustomer struct {
	ID      string        `bson:"_id"`
	Name    string        `bson:"name"`
	Address *mongoAddress `bson:"address,omitempty"`
}

type mongoRestaurant struct {
	ID          string  `bson:"_id"`
	Name        string  `bson:"name"`
	DeliveryFee float64 `bson:"delivery_fee"`
}

type mongoDish struct {
	ID           string  `bson:"_id"`
	RestaurantID string  `bson:"restaurant_id"`
	Name         string  `bson:"name"`
	Price        float64 `bson:"price"`
	Available    *bool   `bson:"available,omitempty"`
}

func (r *CatalogRepoMongoDB) GetCustomer(ctx context.Context, id string) (*orderDomain.Customer, error) {
	var mc mongoCustomer
	if err := findByID(ctx, r.customers, id, &mc, orderDomain.ErrCustomerNotFound); err != nil {
		return nil, err
	}
	var addr *orderDomain.Address
	if a := mc.Address; a != nil {
		addr = &orderDomain.Address{Street: a.Street, City: a.City, State: a.State, Country: a.Country, ZipCode: a.ZipCode}
	}
	return &orderDomain.Customer{ID: mc.ID, Name: mc.Name, Address: addr}, nil
}

func (r *CatalogRepoMongoDB) GetRestaurant(ctx context.Context, id string) (*orderDomain.Restaurant, error) {
	var mr mongoRestaurant
	if err := findByID(ctx, r.restaurants, id, &mr, orderDomain.ErrRestaurantNotFound); err != nil {
		return nil, err
	}
	return &orderDomain.Restaurant{ID: mr.ID, Name: mr.Name, DeliveryFee: mr.DeliveryFee}, nil
}

// GetDish trata un plato sin campo available como disponible.
func (r *CatalogRepoMongoDB) GetDish(ctx context.Context, id string) (*orderDomain.Dish, error) {
	var md mongoDish
	if err := findByID(ctx, r.dishes, id, &md, orderDomain.ErrDishNotFound); err != nil {
		return nil, err
	}
	available := md.Available == nil || *md.Available
	return &orderDomain.Dish{
		ID: md.ID, RestaurantID: md.RestaurantID, Name: md.Name, Price: md.Price, Available: available,
	}, nil
}

// catalogIDFilter acepta el id como ObjectId en hex o como _id de tipo string.
func catalogIDFilter(id string) bson.M {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return bson.M{"_id": id}
	}
	return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
}

func findByID(ctx context.Context, coll *mongo.Collection, id string, dest interface{}, notFound error) error {
	err := coll.FindOne(ctx, catalogIDFilter(id)).Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	return err
}

var _ orderDomain.CatalogRepository = (*CatalogRepoMongoDB)(nil)
