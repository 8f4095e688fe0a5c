package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/deliverylab/shared/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const OutboxCollection = "outbox"

// OutboxRepoMongoDB implementa sharedDomain.OutboxRepository. Los eventos los
// inserta cada repositorio de agregado dentro de su propia transacción (InsertOutbox).
type OutboxRepoMongoDB struct {
	outboxColl *mongo.Collection
}

func NewOutboxRepoMongoDB(client *mongo.Client, dbName string) *OutboxRepoMongoDB {
	return &OutboxRepoMongoDB{outboxColl: client.Database(dbName).Collection(OutboxCollection)}
}

// OutboxDocument es la forma BSON de un evento. El payload se guarda como JSON
// para que el relayer lo decodifique sin pasar por tipos BSON.
type OutboxDocument struct {
	ID            string    `bson:"_id"`
	AggregateType string    `bson:"aggregate_type"`
	AggregateID   string    `bson:"aggregate_id"`
	EventType     string    `bson:"event_type"`
	Payload       string    `bson:"payload"`
	CreatedAt     time.Time `bson:"created_at"`
	Processed     bool      `bson:"processed"`
}

// ToOutboxDocument serializa el evento para insertarlo.
func ToOutboxDocument(evt sharedDomain.OutboxEvent) (*OutboxDocument, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("outbox payload %s: %w", evt.EventType, err)
	}
	return &OutboxDocument{
		ID:            evt.ID.String(),
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.EventType,
		Payload:       string(payload),
		CreatedAt:     evt.CreatedAt,
		Processed:     false,
	}, nil
}

// InsertOutbox añade los eventos a la colección outbox usando ctx, que puede ser
// un mongo.SessionContext para que formen parte de una transacción.
func InsertOutbox(ctx context.Context, coll *mongo.Collection, evts []sharedDomain.OutboxEvent) error {
	if len(evts) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(evts))
	for _, evt := range evts {
		doc, err := ToOutboxDocument(evt)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	_, err := coll.InsertMany(ctx, docs)
	return err
}

// EnsureIndexes crea el índice que usa el polling del relayer.
func (r *OutboxRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.outboxColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "processed", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

// FetchPendingOutbox devuelve los eventos no procesados, los más antiguos primero.
func (r *OutboxRepoMongoDB) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	filter := bson.M{"processed": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))

	cursor, err := r.outboxColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []sharedDomain.OutboxEvent
	for cursor.Next(ctx) {
		var doc OutboxDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		evt, err := fromOutboxDocument(&doc)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, cursor.Err()
}

func (r *OutboxRepoMongoDB) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.outboxColl.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{"processed": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox event not found: %s", id)
	}
	return nil
}

func fromOutboxDocument(doc *OutboxDocument) (sharedDomain.OutboxEvent, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return sharedDomain.OutboxEvent{}, fmt.Errorf("outbox id %q: %w", doc.ID, err)
	}
	return sharedDomain.OutboxEvent{
		ID:            id,
		AggregateType: doc.AggregateType,
		AggregateID:   doc.AggregateID,
		EventType:     doc.EventType,
		Payload:       json.RawMessage(doc.Payload),
		CreatedAt:     doc.CreatedAt,
		Processed:     doc.Processed,
	}, nil
}

var _ sharedDomain.OutboxRepository = (*OutboxRepoMongoDB)(nil)
