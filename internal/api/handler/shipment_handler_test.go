package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

func sampleShipment() *domain.Shipment {
	now := time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)
	s, err := domain.NewShipment(domain.NewShipmentParams{
		ID:                "shp-1",
		TrackingNumber:    "JKT-20261016-000001",
		OriginBranchID:    "JKT",
		DestinationBranch: "SBY",
		SenderID:          "cust-a",
		RecipientID:       "cust-b",
		ItemCount:         2,
		WeightKg:          decimal.RequireFromString("10"),
		UnitPricePerKg:    15000,
		PaymentMode:       domain.PaymentCashUpfront,
		Actor:             "ops-1",
	}, now)
	if err != nil {
		panic(err)
	}
	return s
}

const registerBody = `{
	"origin_branch_id": "JKT",
	"destination_branch_id": "SBY",
	"sender_id": "cust-a",
	"recipient_id": "cust-b",
	"item_count": 2,
	"weight_kg": 10.5,
	"unit_price_per_kg": 15000,
	"payment_mode": "CASH_UPFRONT"
}`

func TestShipmentHandler_Create_Success(t *testing.T) {
	var got ports.RegisterShipmentInput
	h := NewShipmentHandler(&stubShipmentService{
		registerFn: func(ctx context.Context, in ports.RegisterShipmentInput) (*domain.Shipment, error) {
			got = in
			return sampleShipment(), nil
		},
	})

	c, rec := newContext(t, http.MethodPost, "/v1/shipments", registerBody, branchJKT)
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !got.WeightKg.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("weight not passed exactly: %s", got.WeightKg)
	}
	if got.Actor != "ops-1" {
		t.Fatalf("actor not propagated: %q", got.Actor)
	}

	var resp shipmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Price != 150000 || resp.Status != "PENDING" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Links.Tracking != "/v1/tracking/JKT-20261016-000001" {
		t.Fatalf("unexpected links: %+v", resp.Links)
	}
}

func TestShipmentHandler_Create_OtherBranchForbidden(t *testing.T) {
	h := NewShipmentHandler(&stubShipmentService{
		registerFn: func(ctx context.Context, in ports.RegisterShipmentInput) (*domain.Shipment, error) {
			t.Fatalf("service should not be called")
			return nil, nil
		},
	})

	sby := domain.Actor{ID: "ops-2", Role: domain.RoleBranch, BranchID: "SBY"}
	c, _ := newContext(t, http.MethodPost, "/v1/shipments", registerBody, sby)
	if err := h.Create(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestShipmentHandler_Create_ValidationErrors(t *testing.T) {
	h := NewShipmentHandler(&stubShipmentService{})
	cases := map[string]string{
		"zero weight":  `{"origin_branch_id":"JKT","destination_branch_id":"SBY","sender_id":"a","recipient_id":"b","item_count":1,"weight_kg":0,"payment_mode":"CASH_UPFRONT"}`,
		"bad mode":     `{"origin_branch_id":"JKT","destination_branch_id":"SBY","sender_id":"a","recipient_id":"b","item_count":1,"weight_kg":1,"payment_mode":"BARTER"}`,
		"missing dest": `{"origin_branch_id":"JKT","sender_id":"a","recipient_id":"b","item_count":1,"weight_kg":1,"payment_mode":"CASH_UPFRONT"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newContext(t, http.MethodPost, "/v1/shipments", body, admin)
			if code := httpCode(t, h.Create(c)); code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", code)
			}
		})
	}

	c, _ := newContext(t, http.MethodPost, "/v1/shipments", `{not json`, admin)
	if code := httpCode(t, h.Create(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", code)
	}
}

func TestShipmentHandler_Create_RequiresActor(t *testing.T) {
	h := NewShipmentHandler(&stubShipmentService{})
	c, _ := newContext(t, http.MethodPost, "/v1/shipments", registerBody, domain.Actor{})
	if code := httpCode(t, h.Create(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestShipmentHandler_Transition_PassesIdempotencyKey(t *testing.T) {
	var got ports.TransitionInput
	h := NewShipmentHandler(&stubShipmentService{
		transitionFn: func(ctx context.Context, in ports.TransitionInput) (*domain.Shipment, error) {
			got = in
			s := sampleShipment()
			_ = s.ApplyTransition(domain.StatusMuat, domain.TransitionInput{Actor: in.Actor}, time.Now())
			return s, nil
		},
	})

	c, rec := newContext(t, http.MethodPost, "/v1/shipments/shp-1/transitions",
		`{"status":"MUAT","location":"JKT hub"}`, courier)
	c.SetParamNames("id")
	c.SetParamValues("shp-1")
	c.Request().Header.Set("Idempotency-Key", "req-42")

	if err := h.Transition(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.ShipmentID != "shp-1" || got.TargetStatus != "MUAT" || got.RequestToken != "req-42" {
		t.Fatalf("unexpected input: %+v", got)
	}
	if got.Actor != "drv-9" || got.Location != "JKT hub" {
		t.Fatalf("actor or location lost: %+v", got)
	}
}

func TestShipmentHandler_Transition_PropagatesDomainError(t *testing.T) {
	want := &domain.TransitionError{From: domain.StatusTerkirim, To: domain.StatusPending, Err: domain.ErrInvalidTransition}
	h := NewShipmentHandler(&stubShipmentService{
		transitionFn: func(ctx context.Context, in ports.TransitionInput) (*domain.Shipment, error) {
			return nil, want
		},
	})

	c, _ := newContext(t, http.MethodPost, "/v1/shipments/shp-1/transitions", `{"status":"PENDING"}`, admin)
	if err := h.Transition(c); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestShipmentHandler_Delete_ChecksBranch(t *testing.T) {
	deleted := false
	svc := &stubShipmentService{
		getFn: func(ctx context.Context, id string) (*domain.Shipment, error) { return sampleShipment(), nil },
		deleteFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	h := NewShipmentHandler(svc)

	sby := domain.Actor{ID: "ops-2", Role: domain.RoleBranch, BranchID: "SBY"}
	c, _ := newContext(t, http.MethodDelete, "/v1/shipments/shp-1", "", sby)
	if err := h.Delete(c); !errors.Is(err, domain.ErrForbidden) || deleted {
		t.Fatalf("expected forbidden without delete, got %v (deleted=%v)", err, deleted)
	}

	c, rec := newContext(t, http.MethodDelete, "/v1/shipments/shp-1", "", branchJKT)
	if err := h.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || !deleted {
		t.Fatalf("expected 204 and delete, got %d (deleted=%v)", rec.Code, deleted)
	}
}

func TestShipmentHandler_AssignForwardingAgent(t *testing.T) {
	h := NewShipmentHandler(&stubShipmentService{
		assignFn: func(ctx context.Context, id, agentID, actor string) (*domain.Shipment, error) {
			if id != "shp-1" || agentID != "agent-7" || actor != "ops-1" {
				t.Fatalf("unexpected args: %s %s %s", id, agentID, actor)
			}
			s := sampleShipment()
			s.ForwardingCode = domain.ForwardingPaidBySender
			s.ForwardingAgentID = agentID
			return s, nil
		},
	})

	c, rec := newContext(t, http.MethodPut, "/v1/shipments/shp-1/forwarding-agent", `{"forwarding_agent_id":"agent-7"}`, branchJKT)
	c.SetParamNames("id")
	c.SetParamValues("shp-1")
	if err := h.AssignForwardingAgent(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTrackingHandler_Timeline(t *testing.T) {
	h := NewTrackingHandler(&stubTracking{
		byNumberFn: func(ctx context.Context, n string) (*domain.Timeline, error) {
			if n != "JKT-20261016-000001" {
				return nil, domain.ErrShipmentNotFound
			}
			tl := domain.ProjectTimeline(sampleShipment())
			return &tl, nil
		},
	})

	c, rec := newContext(t, http.MethodGet, "/v1/tracking/JKT-20261016-000001", "", courier)
	c.SetParamNames("tracking_number")
	c.SetParamValues("JKT-20261016-000001")
	if err := h.Timeline(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp timelineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.CurrentStatus != "PENDING" || resp.CurrentStageIndex != 0 || len(resp.Entries) != 1 {
		t.Fatalf("unexpected timeline: %+v", resp)
	}

	c, _ = newContext(t, http.MethodGet, "/v1/tracking/nope", "", courier)
	c.SetParamNames("tracking_number")
	c.SetParamValues("nope")
	if err := h.Timeline(c); !errors.Is(err, domain.ErrShipmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
