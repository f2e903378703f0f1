package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

type ReturnRepository struct {
	col *mongo.Collection
}

func NewReturnRepository(db *mongo.Database) *ReturnRepository {
	return &ReturnRepository{col: db.Collection(collectionReturns)}
}

type mongoAssignment struct {
	VehicleID         string   `bson:"vehicle_id,omitempty"`
	DriverID          string   `bson:"driver_id,omitempty"`
	CheckerID         string   `bson:"checker_id,omitempty"`
	CrewIDs           []string `bson:"crew_ids,omitempty"`
	StartOdometerKm   int64    `bson:"start_odometer_km,omitempty"`
	EstimatedDuration string   `bson:"estimated_duration,omitempty"`
	Reference         string   `bson:"reference,omitempty"`
}

type mongoReturn struct {
	ID           string          `bson:"_id"`
	BranchID     string          `bson:"branch_id"`
	MemberIDs    []string        `bson:"member_ids"`
	DispatchDate time.Time       `bson:"dispatch_date"`
	ArrivalDate  *time.Time      `bson:"arrival_date,omitempty"`
	ReceiptRef   string          `bson:"receipt_ref,omitempty"`
	Status       string          `bson:"status"`
	Assignment   mongoAssignment `bson:"assignment"`
	CreatedBy    string          `bson:"created_by"`
	ReceivedBy   string          `bson:"received_by,omitempty"`
	Version      int64           `bson:"version"`
	CreatedAt    time.Time       `bson:"created_at"`
	UpdatedAt    time.Time       `bson:"updated_at"`
}

func toMongoReturn(r *domain.ReturnBatch) mongoReturn {
	return mongoReturn{
		ID:           r.ID,
		BranchID:     r.BranchID,
		MemberIDs:    r.MemberIDs,
		DispatchDate: r.DispatchDate,
		ArrivalDate:  r.ArrivalDate,
		ReceiptRef:   r.ReceiptRef,
		Status:       string(r.Status),
		Assignment:   mongoAssignment(r.Assignment),
		CreatedBy:    r.CreatedBy,
		ReceivedBy:   r.ReceivedBy,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (m mongoReturn) toDomain() *domain.ReturnBatch {
	return &domain.ReturnBatch{
		ID:           m.ID,
		BranchID:     m.BranchID,
		MemberIDs:    m.MemberIDs,
		DispatchDate: m.DispatchDate.UTC(),
		ArrivalDate:  utcPtr(m.ArrivalDate),
		ReceiptRef:   m.ReceiptRef,
		Status:       domain.ReturnStatus(m.Status),
		Assignment:   domain.ResourceAssignment(m.Assignment),
		CreatedBy:    m.CreatedBy,
		ReceivedBy:   m.ReceivedBy,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func (r *ReturnRepository) Create(ctx context.Context, rb *domain.ReturnBatch) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, toMongoReturn(rb)); err != nil {
		return fmt.Errorf("insert return batch: %w", err)
	}
	return nil
}

func (r *ReturnRepository) FindByID(ctx context.Context, id string) (*domain.ReturnBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoReturn
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domain.ErrReturnNotFound, id)
		}
		return nil, fmt.Errorf("find return batch: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ReturnRepository) Update(ctx context.Context, rb *domain.ReturnBatch) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoReturn(rb)
	doc.Version = rb.Version + 1
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": rb.ID, "version": rb.Version}, doc)
	if err != nil {
		return fmt.Errorf("update return batch: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: return %s", domain.ErrVersionConflict, rb.ID)
	}
	rb.Version = doc.Version
	return nil
}

func (r *ReturnRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "member_ids", Value: 1}}},
		{Keys: bson.D{{Key: "branch_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}
