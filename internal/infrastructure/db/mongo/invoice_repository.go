package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

type InvoiceRepository struct {
	col *mongo.Collection
}

func NewInvoiceRepository(db *mongo.Database) *InvoiceRepository {
	return &InvoiceRepository{col: db.Collection(collectionInvoices)}
}

type mongoInvoiceLine struct {
	ShipmentID     string `bson:"shipment_id"`
	TrackingNumber string `bson:"tracking_number"`
	Price          int64  `bson:"price"`
}

type mongoInstallment struct {
	Sequence   int       `bson:"sequence"`
	PaidAt     time.Time `bson:"paid_at"`
	Amount     int64     `bson:"amount"`
	Note       string    `bson:"note,omitempty"`
	RecordedBy string    `bson:"recorded_by"`
	RecordedAt time.Time `bson:"recorded_at"`
}

// mongoInvoice stores Active alongside VoidedAt so the partial unique index
// on member shipments can skip void invoices.
type mongoInvoice struct {
	ID           string             `bson:"_id"`
	Number       string             `bson:"number"`
	CustomerID   string             `bson:"customer_id"`
	CustomerRole string             `bson:"customer_role"`
	BranchID     string             `bson:"branch_id"`
	Lines        []mongoInvoiceLine `bson:"lines"`
	Installments []mongoInstallment `bson:"installments"`
	Total        int64              `bson:"total"`
	Status       string             `bson:"status"`
	Overdue      bool               `bson:"overdue"`
	DueAt        time.Time          `bson:"due_at"`
	SettledAt    *time.Time         `bson:"settled_at,omitempty"`
	VoidedAt     *time.Time         `bson:"voided_at,omitempty"`
	VoidReason   string             `bson:"void_reason,omitempty"`
	VoidedBy     string             `bson:"voided_by,omitempty"`
	Active       bool               `bson:"active"`
	CreatedBy    string             `bson:"created_by"`
	Version      int64              `bson:"version"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func toMongoInvoice(inv *domain.Invoice) mongoInvoice {
	lines := make([]mongoInvoiceLine, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = mongoInvoiceLine(l)
	}
	installments := make([]mongoInstallment, len(inv.Installments))
	for i, in := range inv.Installments {
		installments[i] = mongoInstallment(in)
	}
	return mongoInvoice{
		ID:           inv.ID,
		Number:       inv.Number,
		CustomerID:   inv.CustomerID,
		CustomerRole: string(inv.CustomerRole),
		BranchID:     inv.BranchID,
		Lines:        lines,
		Installments: installments,
		Total:        inv.Total,
		Status:       string(inv.Status),
		Overdue:      inv.Overdue,
		DueAt:        inv.DueAt,
		SettledAt:    inv.SettledAt,
		VoidedAt:     inv.VoidedAt,
		VoidReason:   inv.VoidReason,
		VoidedBy:     inv.VoidedBy,
		Active:       inv.Active(),
		CreatedBy:    inv.CreatedBy,
		Version:      inv.Version,
		CreatedAt:    inv.CreatedAt,
		UpdatedAt:    inv.UpdatedAt,
	}
}

func (m mongoInvoice) toDomain() *domain.Invoice {
	lines := make([]domain.InvoiceLine, len(m.Lines))
	for i, l := range m.Lines {
		lines[i] = domain.InvoiceLine(l)
	}
	installments := make([]domain.Installment, len(m.Installments))
	for i, in := range m.Installments {
		in.PaidAt, in.RecordedAt = in.PaidAt.UTC(), in.RecordedAt.UTC()
		installments[i] = domain.Installment(in)
	}
	return &domain.Invoice{
		ID:           m.ID,
		Number:       m.Number,
		CustomerID:   m.CustomerID,
		CustomerRole: domain.CustomerRole(m.CustomerRole),
		BranchID:     m.BranchID,
		Lines:        lines,
		Installments: installments,
		Total:        m.Total,
		Status:       domain.SettlementStatus(m.Status),
		Overdue:      m.Overdue,
		DueAt:        m.DueAt.UTC(),
		SettledAt:    utcPtr(m.SettledAt),
		VoidedAt:     utcPtr(m.VoidedAt),
		VoidReason:   m.VoidReason,
		VoidedBy:     m.VoidedBy,
		CreatedBy:    m.CreatedBy,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, toMongoInvoice(inv)); err != nil {
		return insertInvoiceError(inv, err)
	}
	return nil
}

const (
	invoiceNumberIndex       = "invoice_number"
	invoiceActiveMemberIndex = "invoice_active_member"
)

// insertInvoiceError separates a member already on an active invoice from a
// clash on the invoice number, which means the sequence counter drifted.
func insertInvoiceError(inv *domain.Invoice, err error) error {
	switch {
	case !mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("insert invoice: %w", err)
	case duplicateOn(err, invoiceActiveMemberIndex):
		return fmt.Errorf("%w: a member is on another active invoice", domain.ErrAlreadyInvoiced)
	default:
		return fmt.Errorf("insert invoice %s: duplicate key: %w", inv.Number, err)
	}
}

func duplicateOn(err error, index string) bool {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return false
	}
	for _, e := range we.WriteErrors {
		if e.Code == 11000 && strings.Contains(e.Message, "index: "+index+" ") {
			return true
		}
	}
	return false
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *InvoiceRepository) FindActiveByShipment(ctx context.Context, shipmentID string) (*domain.Invoice, error) {
	return r.findOne(ctx, bson.M{"lines.shipment_id": shipmentID, "active": true}, "shipment "+shipmentID)
}

func (r *InvoiceRepository) findOne(ctx context.Context, filter bson.M, ref string) (*domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoInvoice
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, ref)
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return doc.toDomain(), nil
}

// Update replaces the document only while its stored version still matches.
func (r *InvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoInvoice(inv)
	doc.Version = inv.Version + 1
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": inv.ID, "version": inv.Version}, doc)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": inv.ID})
		if err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, inv.ID)
		}
		return fmt.Errorf("%w: invoice %s", domain.ErrVersionConflict, inv.Number)
	}
	inv.Version = doc.Version
	return nil
}

func (r *InvoiceRepository) ListOutstanding(ctx context.Context) ([]*domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx,
		bson.M{"active": true, "status": string(domain.SettlementOutstanding)},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list outstanding invoices: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.Invoice
	for cur.Next(ctx) {
		var doc mongoInvoice
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

// EnsureIndexes creates the invoice indexes. The partial unique index keeps a
// shipment on at most one active invoice even if the member locks are lost.
func (r *InvoiceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "number", Value: 1}}, Options: options.Index().SetName(invoiceNumberIndex).SetUnique(true)},
		{
			Keys: bson.D{{Key: "lines.shipment_id", Value: 1}},
			Options: options.Index().
				SetName(invoiceActiveMemberIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "customer_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
