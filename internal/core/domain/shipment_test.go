package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestShipment(t *testing.T, weight string, unitPrice int64) *Shipment {
	t.Helper()
	s, err := NewShipment(NewShipmentParams{
		ID:                "shp-1",
		TrackingNumber:    "JKT-20261016-000001",
		OriginBranchID:    "JKT",
		DestinationBranch: "SBY",
		SenderID:          "cust-1",
		RecipientID:       "cust-2",
		ItemDescription:   "spare parts",
		ItemCount:         2,
		WeightKg:          decimal.RequireFromString(weight),
		UnitPricePerKg:    unitPrice,
		PaymentMode:       PaymentCashUpfront,
		Actor:             "clerk-1",
	}, time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new shipment: %v", err)
	}
	return s
}

func TestNewShipment_ComputesPrice(t *testing.T) {
	s := newTestShipment(t, "10", 15000)
	if s.Price != 150000 {
		t.Fatalf("expected price 150000, got %d", s.Price)
	}
	if s.Status != StatusPending || len(s.StatusHistory) != 1 {
		t.Fatalf("expected PENDING with one history entry, got %s/%d", s.Status, len(s.StatusHistory))
	}
	if s.ForwardingCode != ForwardingNone {
		t.Errorf("expected default forwarding code NONE, got %s", s.ForwardingCode)
	}
}

func TestComputePrice_Rounding(t *testing.T) {
	cases := []struct {
		weight string
		unit   int64
		want   int64
	}{
		{"10", 15000, 150000},
		{"2.5", 7001, 17503}, // 17502.5 rounds half up
		{"0.333", 1000, 333},
		{"1.25", 0, 0},
	}
	for _, c := range cases {
		got := ComputePrice(decimal.RequireFromString(c.weight), c.unit)
		if got != c.want {
			t.Errorf("%s × %d: expected %d, got %d", c.weight, c.unit, c.want, got)
		}
	}
}

func TestNewShipment_Validation(t *testing.T) {
	_, err := NewShipment(NewShipmentParams{
		OriginBranchID:    "JKT",
		DestinationBranch: "SBY",
		SenderID:          "a",
		RecipientID:       "b",
		ItemCount:         1,
		WeightKg:          decimal.Zero,
		PaymentMode:       PaymentCashOnDelivery,
		ForwardingCode:    ForwardingNone,
		ForwardingAgentID: "agent-9",
	}, time.Now())
	if !errors.Is(err, ErrInvalidShipment) {
		t.Fatalf("expected ErrInvalidShipment, got %v", err)
	}
}

func TestApplyTransition_HappyPath(t *testing.T) {
	s := newTestShipment(t, "1", 1000)
	now := s.CreatedAt
	for _, next := range []ShipmentStatus{StatusMuat, StatusTransit, StatusLansir, StatusTerkirim} {
		now = now.Add(time.Hour)
		if err := s.ApplyTransition(next, TransitionInput{Actor: "ops"}, now); err != nil {
			t.Fatalf("%s: %v", next, err)
		}
	}
	if s.Status != StatusTerkirim {
		t.Fatalf("expected TERKIRIM, got %s", s.Status)
	}
	if len(s.StatusHistory) != 5 {
		t.Fatalf("expected 5 history entries, got %d", len(s.StatusHistory))
	}
}

func TestApplyTransition_SkippingEdgeRejected(t *testing.T) {
	s := newTestShipment(t, "1", 1000)
	err := s.ApplyTransition(StatusLansir, TransitionInput{}, time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.From != StatusPending || te.To != StatusLansir {
		t.Fatalf("expected TransitionError context, got %#v", err)
	}
	if s.Status != StatusPending || len(s.StatusHistory) != 1 {
		t.Fatal("rejected transition must leave the shipment untouched")
	}
}

func TestApplyTransition_ReturnIsTerminal(t *testing.T) {
	s := newTestShipment(t, "1", 1000)
	s.Status = StatusTerkirim
	if err := s.ApplyTransition(StatusReturn, TransitionInput{}, time.Now()); err != nil {
		t.Fatalf("TERKIRIM → RETURN: %v", err)
	}
	err := s.ApplyTransition(StatusTerkirim, TransitionInput{}, time.Now())
	if !errors.Is(err, ErrTerminalState) {
		t.Fatalf("expected ErrTerminalState, got %v", err)
	}
}

func TestApplyTransition_MissingForwardingAgent(t *testing.T) {
	s := newTestShipment(t, "1", 1000)
	s.ForwardingCode = ForwardingPaidByRecipient

	err := s.ApplyTransition(StatusMuat, TransitionInput{}, time.Now())
	if !errors.Is(err, ErrMissingForwardingAgent) {
		t.Fatalf("expected ErrMissingForwardingAgent, got %v", err)
	}

	s.ForwardingAgentID = "agent-7"
	if err := s.ApplyTransition(StatusMuat, TransitionInput{}, time.Now()); err != nil {
		t.Fatalf("unexpected error with agent set: %v", err)
	}
}

func TestApplyTransition_HistoryNeverGoesBackwards(t *testing.T) {
	s := newTestShipment(t, "1", 1000)
	earlier := s.CreatedAt.Add(-time.Minute)
	if err := s.ApplyTransition(StatusMuat, TransitionInput{}, earlier); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.StatusHistory[1].Timestamp.Before(s.StatusHistory[0].Timestamp) {
		t.Fatal("history timestamps must be non-decreasing")
	}
}

func TestClone_DoesNotShareHistory(t *testing.T) {
	s := newTestShipment(t, "1", 1000)
	c := s.Clone()
	_ = c.ApplyTransition(StatusMuat, TransitionInput{}, time.Now())
	if len(s.StatusHistory) != 1 || s.Status != StatusPending {
		t.Fatal("clone mutation leaked into original")
	}
}

func TestFormatTrackingNumber(t *testing.T) {
	got := FormatTrackingNumber("jkt", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 42)
	if got != "JKT-20260102-000042" {
		t.Fatalf("unexpected tracking number %s", got)
	}
}

func TestNewShipment_RejectsPriceOverflow(t *testing.T) {
	_, err := NewShipment(NewShipmentParams{
		OriginBranchID:    "JKT",
		DestinationBranch: "SBY",
		SenderID:          "a",
		RecipientID:       "b",
		ItemCount:         1,
		WeightKg:          decimal.RequireFromString("1000000000000000"),
		UnitPricePerKg:    15000,
		PaymentMode:       PaymentCashUpfront,
	}, time.Now())
	if !errors.Is(err, ErrInvalidShipment) {
		t.Fatalf("expected ErrInvalidShipment, got %v", err)
	}
}

func TestPriceInRange(t *testing.T) {
	cases := []struct {
		weight string
		unit   int64
		want   bool
	}{
		{"10", 15000, true},
		{"9223372036854775807", 1, true},
		{"9223372036854775808", 1, false},
		{"1000000000000000", 15000, false},
	}
	for _, c := range cases {
		if got := PriceInRange(decimal.RequireFromString(c.weight), c.unit); got != c.want {
			t.Errorf("%s × %d: expected %v, got %v", c.weight, c.unit, c.want, got)
		}
	}
}
