package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// RegisterShipmentInput carries the intake fields of a new shipment note.
type RegisterShipmentInput struct {
	OriginBranchID      string
	DestinationBranchID string
	SenderID            string
	RecipientID         string
	ItemDescription     string
	CommodityClass      string
	PackingType         string
	ItemCount           int
	WeightKg            decimal.Decimal
	UnitPricePerKg      int64
	Notes               string
	ForwardingCode      string
	ForwardingAgentID   string
	PaymentMode         string
	Actor               string
}

// TransitionInput requests a single-record status change.
type TransitionInput struct {
	ShipmentID   string
	TargetStatus string
	Actor        string
	Location     string
	Notes        string
	// RequestToken makes retries safe: a token already honoured for this
	// shipment returns the current record without a second transition.
	RequestToken string
	// Source identifies the channel (api, scanner, driver_app) for the audit trail.
	Source string
	// OccurredAt is the reported time of a scanned event. Zero, or a time in
	// the future, means now.
	OccurredAt time.Time
}

// ShipmentService defines use-case operations for shipment notes.
type ShipmentService interface {
	RegisterShipment(ctx context.Context, in RegisterShipmentInput) (*domain.Shipment, error)
	GetShipment(ctx context.Context, id string) (*domain.Shipment, error)
	AssignForwardingAgent(ctx context.Context, id, agentID, actor string) (*domain.Shipment, error)
	DeletePending(ctx context.Context, id string) error
	ApplyTransition(ctx context.Context, in TransitionInput) (*domain.Shipment, error)
}

// TrackingService projects customer-facing timelines.
type TrackingService interface {
	ProjectTimeline(ctx context.Context, shipmentID string) (*domain.Timeline, error)
	ProjectTimelineByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Timeline, error)
}
