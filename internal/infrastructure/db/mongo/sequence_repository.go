package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SequenceRepository keeps one counter document per key. Callers draw numbers
// outside transactions, so an aborted unit of work leaves a gap, never a
// duplicate.
type SequenceRepository struct {
	col *mongo.Collection
}

func NewSequenceRepository(db *mongo.Database) *SequenceRepository {
	return &SequenceRepository{col: db.Collection(collectionSequences)}
}

func (r *SequenceRepository) Next(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc struct {
		Value int64 `bson:"value"`
	}
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", key, err)
	}
	return doc.Value, nil
}
