package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kargonusa/freight-core/internal/api/middleware"
	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

type stubShipmentService struct {
	registerFn   func(ctx context.Context, in ports.RegisterShipmentInput) (*domain.Shipment, error)
	getFn        func(ctx context.Context, id string) (*domain.Shipment, error)
	assignFn     func(ctx context.Context, id, agentID, actor string) (*domain.Shipment, error)
	deleteFn     func(ctx context.Context, id string) error
	transitionFn func(ctx context.Context, in ports.TransitionInput) (*domain.Shipment, error)
}

func (s *stubShipmentService) RegisterShipment(ctx context.Context, in ports.RegisterShipmentInput) (*domain.Shipment, error) {
	return s.registerFn(ctx, in)
}

func (s *stubShipmentService) GetShipment(ctx context.Context, id string) (*domain.Shipment, error) {
	return s.getFn(ctx, id)
}

func (s *stubShipmentService) AssignForwardingAgent(ctx context.Context, id, agentID, actor string) (*domain.Shipment, error) {
	return s.assignFn(ctx, id, agentID, actor)
}

func (s *stubShipmentService) DeletePending(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

func (s *stubShipmentService) ApplyTransition(ctx context.Context, in ports.TransitionInput) (*domain.Shipment, error) {
	return s.transitionFn(ctx, in)
}

type stubMovementService struct {
	runFn     func(ctx context.Context, in ports.BatchMovementInput) (*domain.BatchResult, error)
	presetFn  func(ctx context.Context, kind domain.MovementKind, in ports.BatchMovementInput) (*domain.BatchResult, error)
	createFn  func(ctx context.Context, in ports.CreateReturnInput) (*domain.ReturnBatch, error)
	receiveFn func(ctx context.Context, in ports.ReceiveReturnInput) (*domain.ReturnBatch, error)
	getFn     func(ctx context.Context, id string) (*domain.ReturnBatch, error)
}

func (s *stubMovementService) RunBatchMovement(ctx context.Context, in ports.BatchMovementInput) (*domain.BatchResult, error) {
	return s.runFn(ctx, in)
}

func (s *stubMovementService) RunPresetMovement(ctx context.Context, kind domain.MovementKind, in ports.BatchMovementInput) (*domain.BatchResult, error) {
	return s.presetFn(ctx, kind, in)
}

func (s *stubMovementService) CreateReturn(ctx context.Context, in ports.CreateReturnInput) (*domain.ReturnBatch, error) {
	return s.createFn(ctx, in)
}

func (s *stubMovementService) ReceiveReturn(ctx context.Context, in ports.ReceiveReturnInput) (*domain.ReturnBatch, error) {
	return s.receiveFn(ctx, in)
}

func (s *stubMovementService) GetReturn(ctx context.Context, id string) (*domain.ReturnBatch, error) {
	return s.getFn(ctx, id)
}

type stubBillingService struct {
	createFn  func(ctx context.Context, in ports.CreateInvoiceInput) (*domain.Invoice, error)
	paymentFn func(ctx context.Context, in ports.AddPaymentInput) (*domain.Invoice, error)
	overdueFn func(ctx context.Context, id string, asOf time.Time) (*domain.Invoice, error)
	sweepFn   func(ctx context.Context, asOf time.Time) (int, error)
	balanceFn func(ctx context.Context, id string) (int64, error)
	getFn     func(ctx context.Context, id string) (*domain.Invoice, error)
	voidFn    func(ctx context.Context, id, reason, actor string) (*domain.Invoice, error)
}

func (s *stubBillingService) CreateInvoice(ctx context.Context, in ports.CreateInvoiceInput) (*domain.Invoice, error) {
	return s.createFn(ctx, in)
}

func (s *stubBillingService) AddPayment(ctx context.Context, in ports.AddPaymentInput) (*domain.Invoice, error) {
	return s.paymentFn(ctx, in)
}

func (s *stubBillingService) MarkOverdue(ctx context.Context, id string, asOf time.Time) (*domain.Invoice, error) {
	return s.overdueFn(ctx, id, asOf)
}

func (s *stubBillingService) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	return s.sweepFn(ctx, asOf)
}

func (s *stubBillingService) RemainingBalance(ctx context.Context, id string) (int64, error) {
	return s.balanceFn(ctx, id)
}

func (s *stubBillingService) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.getFn(ctx, id)
}

func (s *stubBillingService) VoidInvoice(ctx context.Context, id, reason, actor string) (*domain.Invoice, error) {
	return s.voidFn(ctx, id, reason, actor)
}

type stubTracking struct {
	byNumberFn func(ctx context.Context, n string) (*domain.Timeline, error)
}

func (s *stubTracking) ProjectTimeline(ctx context.Context, id string) (*domain.Timeline, error) {
	return nil, domain.ErrShipmentNotFound
}

func (s *stubTracking) ProjectTimelineByTrackingNumber(ctx context.Context, n string) (*domain.Timeline, error) {
	return s.byNumberFn(ctx, n)
}

// newContext builds a request context as the Auth middleware would leave it.
func newContext(t *testing.T, method, target, body string, actor domain.Actor) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if actor.ID != "" {
		c.Set(middleware.ContextActorID, actor.ID)
		c.Set(middleware.ContextRole, actor.Role)
		c.Set(middleware.ContextBranchID, actor.BranchID)
	}
	return c, rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

var (
	branchJKT = domain.Actor{ID: "ops-1", Role: domain.RoleBranch, BranchID: "JKT"}
	admin     = domain.Actor{ID: "root", Role: domain.RoleAdmin}
	finance   = domain.Actor{ID: "fin-1", Role: domain.RoleFinance}
	courier   = domain.Actor{ID: "drv-9", Role: domain.RoleCourier}
)
