package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ForwardingCode tells who bears the cost of a third-party (penerus) leg.
type ForwardingCode string

const (
	ForwardingNone                  ForwardingCode = "NONE"
	ForwardingPaidBySender          ForwardingCode = "PAID_BY_SENDER"
	ForwardingPaidByRecipient       ForwardingCode = "PAID_BY_RECIPIENT"
	ForwardingAdvancedByDestination ForwardingCode = "ADVANCED_BY_DESTINATION"
)

func (c ForwardingCode) Valid() bool {
	switch c {
	case ForwardingNone, ForwardingPaidBySender, ForwardingPaidByRecipient, ForwardingAdvancedByDestination:
		return true
	}
	return false
}

// PaymentMode is the payment responsibility agreed at intake.
type PaymentMode string

const (
	PaymentCashUpfront       PaymentMode = "CASH_UPFRONT"
	PaymentCashOnDelivery    PaymentMode = "CASH_ON_DELIVERY"
	PaymentCashAfterDelivery PaymentMode = "CASH_AFTER_DELIVERY"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCashUpfront, PaymentCashOnDelivery, PaymentCashAfterDelivery:
		return true
	}
	return false
}

// StatusHistoryEntry records a single status transition on a shipment.
type StatusHistoryEntry struct {
	Status    ShipmentStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Location  string         `json:"location,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	Actor     string         `json:"actor"`
}

// Shipment is the shipment note (STT) aggregate.
type Shipment struct {
	ID                string               `json:"id"`
	TrackingNumber    string               `json:"tracking_number"`
	OriginBranchID    string               `json:"origin_branch_id"`
	DestinationBranch string               `json:"destination_branch_id"`
	SenderID          string               `json:"sender_id"`
	RecipientID       string               `json:"recipient_id"`
	ItemDescription   string               `json:"item_description"`
	CommodityClass    string               `json:"commodity_class"`
	PackingType       string               `json:"packing_type"`
	ItemCount         int                  `json:"item_count"`
	WeightKg          decimal.Decimal      `json:"weight_kg"`
	UnitPricePerKg    int64                `json:"unit_price_per_kg"`
	Price             int64                `json:"price"`
	Notes             string               `json:"notes,omitempty"`
	ForwardingCode    ForwardingCode       `json:"forwarding_code"`
	ForwardingAgentID string               `json:"forwarding_agent_id,omitempty"`
	PaymentMode       PaymentMode          `json:"payment_mode"`
	Status            ShipmentStatus       `json:"status"`
	StatusHistory     []StatusHistoryEntry `json:"status_history"`
	Version           int64                `json:"version"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// TransitionInput is the caller-supplied part of a history entry.
type TransitionInput struct {
	Actor    string
	Location string
	Notes    string
}

var maxPrice = decimal.NewFromInt(math.MaxInt64)

// ComputePrice returns weight × unit price rounded half away from zero to a
// whole rupiah. Callers must check PriceInRange first.
func ComputePrice(weightKg decimal.Decimal, unitPricePerKg int64) int64 {
	return weightKg.Mul(decimal.NewFromInt(unitPricePerKg)).Round(0).IntPart()
}

// PriceInRange reports whether weight × unit price fits a whole-rupiah int64.
func PriceInRange(weightKg decimal.Decimal, unitPricePerKg int64) bool {
	return weightKg.Mul(decimal.NewFromInt(unitPricePerKg)).Round(0).LessThanOrEqual(maxPrice)
}

// Recompute refreshes the derived price. It is the only writer of Price.
func (s *Shipment) Recompute() {
	s.Price = ComputePrice(s.WeightKg, s.UnitPricePerKg)
}

// Validate checks the write-once intake fields.
func (s *Shipment) Validate() error {
	var problems []string
	if s.OriginBranchID == "" {
		problems = append(problems, "origin branch is required")
	}
	if s.DestinationBranch == "" {
		problems = append(problems, "destination branch is required")
	}
	if s.SenderID == "" || s.RecipientID == "" {
		problems = append(problems, "sender and recipient are required")
	}
	if s.ItemCount <= 0 {
		problems = append(problems, "item count must be positive")
	}
	if !s.WeightKg.IsPositive() {
		problems = append(problems, "weight must be positive")
	}
	if s.UnitPricePerKg < 0 {
		problems = append(problems, "unit price must not be negative")
	} else if !PriceInRange(s.WeightKg, s.UnitPricePerKg) {
		problems = append(problems, "price exceeds the representable range")
	}
	if !s.ForwardingCode.Valid() {
		problems = append(problems, fmt.Sprintf("unknown forwarding code %q", s.ForwardingCode))
	}
	if s.ForwardingCode == ForwardingNone && s.ForwardingAgentID != "" {
		problems = append(problems, "forwarding agent given without forwarding")
	}
	if !s.PaymentMode.Valid() {
		problems = append(problems, fmt.Sprintf("unknown payment mode %q", s.PaymentMode))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidShipment, strings.Join(problems, "; "))
	}
	return nil
}

// ForwardingComplete reports whether the forwarding agent invariant holds.
func (s *Shipment) ForwardingComplete() bool {
	if s.ForwardingCode == ForwardingNone {
		return s.ForwardingAgentID == ""
	}
	return s.ForwardingAgentID != ""
}

// CheckTransition validates a move to next without applying it.
func (s *Shipment) CheckTransition(next ShipmentStatus) error {
	fail := func(err error) error {
		return &TransitionError{
			ShipmentID:     s.ID,
			TrackingNumber: s.TrackingNumber,
			From:           s.Status,
			To:             next,
			Err:            err,
		}
	}
	if !s.Status.Valid() {
		return fail(ErrInvalidTransition)
	}
	if s.Status.IsTerminal() {
		return fail(ErrTerminalState)
	}
	if !next.Valid() || !s.Status.CanTransitionTo(next) {
		return fail(ErrInvalidTransition)
	}
	if s.Status == StatusPending && next == StatusMuat && !s.ForwardingComplete() {
		return fail(ErrMissingForwardingAgent)
	}
	return nil
}

// ApplyTransition moves the shipment along one edge and appends a history
// entry. History timestamps never go backwards: a clock reading older than
// the last entry is stamped with the last entry's time.
func (s *Shipment) ApplyTransition(next ShipmentStatus, in TransitionInput, now time.Time) error {
	if err := s.CheckTransition(next); err != nil {
		return err
	}

	ts := now.UTC()
	if n := len(s.StatusHistory); n > 0 && ts.Before(s.StatusHistory[n-1].Timestamp) {
		ts = s.StatusHistory[n-1].Timestamp
	}

	s.Status = next
	s.StatusHistory = append(s.StatusHistory, StatusHistoryEntry{
		Status:    next,
		Timestamp: ts,
		Location:  in.Location,
		Notes:     in.Notes,
		Actor:     in.Actor,
	})
	s.UpdatedAt = ts
	return nil
}

// Clone returns a deep copy safe to mutate.
func (s *Shipment) Clone() *Shipment {
	c := *s
	c.StatusHistory = make([]StatusHistoryEntry, len(s.StatusHistory))
	copy(c.StatusHistory, s.StatusHistory)
	return &c
}

// NewShipmentParams carries the intake fields of a new shipment note.
type NewShipmentParams struct {
	ID                string
	TrackingNumber    string
	OriginBranchID    string
	DestinationBranch string
	SenderID          string
	RecipientID       string
	ItemDescription   string
	CommodityClass    string
	PackingType       string
	ItemCount         int
	WeightKg          decimal.Decimal
	UnitPricePerKg    int64
	Notes             string
	ForwardingCode    ForwardingCode
	ForwardingAgentID string
	PaymentMode       PaymentMode
	Actor             string
}

// NewShipment builds a validated PENDING shipment with its first history entry.
func NewShipment(p NewShipmentParams, now time.Time) (*Shipment, error) {
	if p.ForwardingCode == "" {
		p.ForwardingCode = ForwardingNone
	}
	now = now.UTC()
	s := &Shipment{
		ID:                p.ID,
		TrackingNumber:    p.TrackingNumber,
		OriginBranchID:    p.OriginBranchID,
		DestinationBranch: p.DestinationBranch,
		SenderID:          p.SenderID,
		RecipientID:       p.RecipientID,
		ItemDescription:   p.ItemDescription,
		CommodityClass:    p.CommodityClass,
		PackingType:       p.PackingType,
		ItemCount:         p.ItemCount,
		WeightKg:          p.WeightKg,
		UnitPricePerKg:    p.UnitPricePerKg,
		Notes:             p.Notes,
		ForwardingCode:    p.ForwardingCode,
		ForwardingAgentID: p.ForwardingAgentID,
		PaymentMode:       p.PaymentMode,
		Status:            StatusPending,
		StatusHistory: []StatusHistoryEntry{
			{Status: StatusPending, Timestamp: now, Actor: p.Actor},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Recompute()
	return s, nil
}

// FormatTrackingNumber renders <BRANCH>-<YYYYMMDD>-<SEQ6>.
func FormatTrackingNumber(branchCode string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", strings.ToUpper(branchCode), day.Format("20060102"), seq)
}
