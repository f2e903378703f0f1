package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

type ShipmentRepository struct {
	col *mongo.Collection
}

func NewShipmentRepository(db *mongo.Database) *ShipmentRepository {
	return &ShipmentRepository{col: db.Collection(collectionShipments)}
}

type mongoHistoryEntry struct {
	Status    string    `bson:"status"`
	Timestamp time.Time `bson:"timestamp"`
	Location  string    `bson:"location,omitempty"`
	Notes     string    `bson:"notes,omitempty"`
	Actor     string    `bson:"actor"`
}

type mongoShipment struct {
	ID                string               `bson:"_id"`
	TrackingNumber    string               `bson:"tracking_number"`
	OriginBranchID    string               `bson:"origin_branch_id"`
	DestinationBranch string               `bson:"destination_branch_id"`
	SenderID          string               `bson:"sender_id"`
	RecipientID       string               `bson:"recipient_id"`
	ItemDescription   string               `bson:"item_description"`
	CommodityClass    string               `bson:"commodity_class"`
	PackingType       string               `bson:"packing_type"`
	ItemCount         int                  `bson:"item_count"`
	WeightKg          primitive.Decimal128 `bson:"weight_kg"`
	UnitPricePerKg    int64                `bson:"unit_price_per_kg"`
	Price             int64                `bson:"price"`
	Notes             string               `bson:"notes,omitempty"`
	ForwardingCode    string               `bson:"forwarding_code"`
	ForwardingAgentID string               `bson:"forwarding_agent_id,omitempty"`
	PaymentMode       string               `bson:"payment_mode"`
	Status            string               `bson:"status"`
	StatusHistory     []mongoHistoryEntry  `bson:"status_history"`
	Version           int64                `bson:"version"`
	CreatedAt         time.Time            `bson:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at"`
}

func toMongoShipment(s *domain.Shipment) (mongoShipment, error) {
	weight, err := primitive.ParseDecimal128(s.WeightKg.String())
	if err != nil {
		return mongoShipment{}, fmt.Errorf("encode weight: %w", err)
	}
	history := make([]mongoHistoryEntry, len(s.StatusHistory))
	for i, h := range s.StatusHistory {
		history[i] = mongoHistoryEntry{
			Status:    string(h.Status),
			Timestamp: h.Timestamp.UTC(),
			Location:  h.Location,
			Notes:     h.Notes,
			Actor:     h.Actor,
		}
	}
	return mongoShipment{
		ID:                s.ID,
		TrackingNumber:    s.TrackingNumber,
		OriginBranchID:    s.OriginBranchID,
		DestinationBranch: s.DestinationBranch,
		SenderID:          s.SenderID,
		RecipientID:       s.RecipientID,
		ItemDescription:   s.ItemDescription,
		CommodityClass:    s.CommodityClass,
		PackingType:       s.PackingType,
		ItemCount:         s.ItemCount,
		WeightKg:          weight,
		UnitPricePerKg:    s.UnitPricePerKg,
		Price:             s.Price,
		Notes:             s.Notes,
		ForwardingCode:    string(s.ForwardingCode),
		ForwardingAgentID: s.ForwardingAgentID,
		PaymentMode:       string(s.PaymentMode),
		Status:            string(s.Status),
		StatusHistory:     history,
		Version:           s.Version,
		CreatedAt:         s.CreatedAt.UTC(),
		UpdatedAt:         s.UpdatedAt.UTC(),
	}, nil
}

func (m mongoShipment) toDomain() (*domain.Shipment, error) {
	weight, err := decimal.NewFromString(m.WeightKg.String())
	if err != nil {
		return nil, fmt.Errorf("decode weight of %s: %w", m.TrackingNumber, err)
	}
	history := make([]domain.StatusHistoryEntry, len(m.StatusHistory))
	for i, h := range m.StatusHistory {
		history[i] = domain.StatusHistoryEntry{
			Status:    domain.ShipmentStatus(h.Status),
			Timestamp: h.Timestamp.UTC(),
			Location:  h.Location,
			Notes:     h.Notes,
			Actor:     h.Actor,
		}
	}
	return &domain.Shipment{
		ID:                m.ID,
		TrackingNumber:    m.TrackingNumber,
		OriginBranchID:    m.OriginBranchID,
		DestinationBranch: m.DestinationBranch,
		SenderID:          m.SenderID,
		RecipientID:       m.RecipientID,
		ItemDescription:   m.ItemDescription,
		CommodityClass:    m.CommodityClass,
		PackingType:       m.PackingType,
		ItemCount:         m.ItemCount,
		WeightKg:          weight,
		UnitPricePerKg:    m.UnitPricePerKg,
		Price:             m.Price,
		Notes:             m.Notes,
		ForwardingCode:    domain.ForwardingCode(m.ForwardingCode),
		ForwardingAgentID: m.ForwardingAgentID,
		PaymentMode:       domain.PaymentMode(m.PaymentMode),
		Status:            domain.ShipmentStatus(m.Status),
		StatusHistory:     history,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}, nil
}

// Create inserts a new shipment document.
func (r *ShipmentRepository) Create(ctx context.Context, s *domain.Shipment) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := toMongoShipment(s)
	if err != nil {
		return err
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: duplicate tracking number %s", domain.ErrInvalidShipment, s.TrackingNumber)
		}
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

func (r *ShipmentRepository) FindByID(ctx context.Context, id string) (*domain.Shipment, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *ShipmentRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Shipment, error) {
	return r.findOne(ctx, bson.M{"tracking_number": trackingNumber}, trackingNumber)
}

func (r *ShipmentRepository) findOne(ctx context.Context, filter bson.M, ref string) (*domain.Shipment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoShipment
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, ref)
		}
		return nil, fmt.Errorf("find shipment: %w", err)
	}
	return doc.toDomain()
}

// Update replaces the document only while its stored version still matches.
func (r *ShipmentRepository) Update(ctx context.Context, s *domain.Shipment) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := toMongoShipment(s)
	if err != nil {
		return err
	}
	doc.Version = s.Version + 1

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": s.ID, "version": s.Version}, doc)
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, s.ID)
	}
	s.Version = doc.Version
	return nil
}

// DeletePending removes the shipment only while it is PENDING.
func (r *ShipmentRepository) DeletePending(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "status": string(domain.StatusPending)})
	if err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	if res.DeletedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", domain.ErrNotPending, id)
	}
	return nil
}

func (r *ShipmentRepository) missOrConflict(ctx context.Context, id string) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, id)
	}
	return fmt.Errorf("%w: shipment %s", domain.ErrVersionConflict, id)
}

// EnsureIndexes creates necessary indexes on the shipments collection.
func (r *ShipmentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tracking_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "origin_branch_id", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
