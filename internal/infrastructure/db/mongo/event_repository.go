package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// EventRepository writes the status_events audit collection.
type EventRepository struct {
	col *mongo.Collection
}

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{col: db.Collection(collectionEvents)}
}

// InsertEvent persists an applied transition to the audit collection.
func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.TrackingEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"shipment_id":     event.ShipmentID,
		"tracking_number": event.TrackingNumber,
		"from":            string(event.From),
		"status":          string(event.Status),
		"timestamp":       event.Timestamp.UTC(),
		"source":          event.Source,
		"actor":           event.Actor,
		"processed_at":    time.Now().UTC(),
	}
	if event.Location != "" {
		doc["location"] = event.Location
	}
	if event.BatchKind != "" {
		doc["batch_kind"] = string(event.BatchKind)
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}

func (r *EventRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tracking_number", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}
