package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

func TestMovementHandler_Preset(t *testing.T) {
	var gotKind domain.MovementKind
	var got ports.BatchMovementInput
	h := NewMovementHandler(&stubMovementService{
		presetFn: func(ctx context.Context, kind domain.MovementKind, in ports.BatchMovementInput) (*domain.BatchResult, error) {
			gotKind, got = kind, in
			return &domain.BatchResult{
				Kind:       kind,
				Members:    in.MemberIDs,
				From:       domain.StatusPending,
				To:         domain.StatusMuat,
				Assignment: in.Assignment,
				AppliedAt:  time.Date(2026, 10, 16, 5, 0, 0, 0, time.UTC),
			}, nil
		},
	})

	body := `{"member_ids":["a","b"],"assignment":{"vehicle_id":"B 9044 TX","driver_id":"drv-9","reference":"RUN-1"},"location":"JKT hub"}`
	c, rec := newContext(t, http.MethodPost, "/v1/movements/loading", body, branchJKT)
	if err := h.Preset(domain.MovementLoading)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotKind != domain.MovementLoading || len(got.MemberIDs) != 2 {
		t.Fatalf("unexpected call: %s %+v", gotKind, got)
	}
	if got.Assignment.VehicleID != "B 9044 TX" || got.Assignment.Reference != "RUN-1" || got.Actor != "ops-1" {
		t.Fatalf("assignment or actor lost: %+v", got)
	}

	var resp batchResultResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.To != "MUAT" || resp.Assignment.DriverID != "drv-9" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestMovementHandler_Run_EmptyMembers(t *testing.T) {
	h := NewMovementHandler(&stubMovementService{})
	c, _ := newContext(t, http.MethodPost, "/v1/movements", `{"member_ids":[],"start_status":"MUAT","target_status":"TRANSIT"}`, admin)
	if code := httpCode(t, h.Run(c)); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
}

func TestMovementHandler_Run_PropagatesBatchError(t *testing.T) {
	want := &domain.BatchError{
		Kind:     domain.MovementDeparture,
		MemberID: "b",
		Current:  domain.StatusPending,
		Required: domain.StatusMuat,
		Err:      domain.ErrPreconditionFailed,
	}
	h := NewMovementHandler(&stubMovementService{
		runFn: func(ctx context.Context, in ports.BatchMovementInput) (*domain.BatchResult, error) {
			if in.StartStatus != "MUAT" || in.TargetStatus != "TRANSIT" {
				t.Fatalf("statuses not passed: %+v", in)
			}
			return nil, want
		},
	})
	c, _ := newContext(t, http.MethodPost, "/v1/movements", `{"member_ids":["a","b"],"start_status":"MUAT","target_status":"TRANSIT"}`, admin)

	var be *domain.BatchError
	if err := h.Run(c); !errors.As(err, &be) || be.MemberID != "b" {
		t.Fatalf("expected batch error on b, got %v", err)
	}
}

func TestMovementHandler_CreateReturn(t *testing.T) {
	var got ports.CreateReturnInput
	h := NewMovementHandler(&stubMovementService{
		createFn: func(ctx context.Context, in ports.CreateReturnInput) (*domain.ReturnBatch, error) {
			got = in
			return &domain.ReturnBatch{
				ID:           "ret-1",
				BranchID:     in.BranchID,
				MemberIDs:    in.MemberIDs,
				DispatchDate: in.DispatchDate,
				Status:       domain.ReturnInProcess,
				CreatedBy:    in.Actor,
			}, nil
		},
	})

	c, rec := newContext(t, http.MethodPost, "/v1/returns",
		`{"branch_id":"JKT","member_ids":["a"],"dispatch_date":"2026-10-16"}`, branchJKT)
	if err := h.CreateReturn(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !got.DispatchDate.Equal(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected dispatch date: %s", got.DispatchDate)
	}

	var resp returnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Status != "PROSES" || resp.DispatchDate != "2026-10-16" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestMovementHandler_CreateReturn_BadDate(t *testing.T) {
	h := NewMovementHandler(&stubMovementService{})
	c, _ := newContext(t, http.MethodPost, "/v1/returns",
		`{"branch_id":"JKT","member_ids":["a"],"dispatch_date":"16/10/2026"}`, branchJKT)
	if code := httpCode(t, h.CreateReturn(c)); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
}

func TestMovementHandler_ReceiveReturn(t *testing.T) {
	h := NewMovementHandler(&stubMovementService{
		receiveFn: func(ctx context.Context, in ports.ReceiveReturnInput) (*domain.ReturnBatch, error) {
			if in.ReturnID != "ret-1" || in.ReceiptRef != "BT-77" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return nil, domain.ErrReturnAlreadyReceived
		},
	})
	c, _ := newContext(t, http.MethodPost, "/v1/returns/ret-1/receive",
		`{"arrival_date":"2026-10-18","receipt_ref":"BT-77"}`, branchJKT)
	c.SetParamNames("id")
	c.SetParamValues("ret-1")
	if err := h.ReceiveReturn(c); !errors.Is(err, domain.ErrReturnAlreadyReceived) {
		t.Fatalf("expected already received, got %v", err)
	}
}
