package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
	"github.com/kargonusa/freight-core/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e ports.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// ---------------------------------------------------------------------------
// Fixture: every service wired to one in-memory store.
// ---------------------------------------------------------------------------

var jakarta = time.FixedZone("WIB", 7*3600)

type fixture struct {
	store     *memory.Store
	locker    *memory.Locker
	guard     *memory.ResourceGuard
	clock     *testClock
	publisher *recordingPublisher
	deps      Dependencies

	shipments *ShipmentService
	moves     *MovementService
	ledger    *BillingLedger
	tracking  *TrackingProjector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	f := &fixture{
		store:     store,
		locker:    memory.NewLocker(),
		guard:     memory.NewResourceGuard(12*time.Hour, clock),
		clock:     clock,
		publisher: &recordingPublisher{},
	}
	f.deps = Dependencies{
		Shipments: memory.NewShipmentRepository(store),
		Invoices:  memory.NewInvoiceRepository(store),
		Returns:   memory.NewReturnRepository(store),
		Sequences: memory.NewSequenceRepository(store),
		Events:    memory.NewEventRepository(store),
		Tx:        store,
		Locker:    f.locker,
		Dedup:     memory.NewDedup(24*time.Hour, clock),
		Guard:     f.guard,
		Publisher: f.publisher,
		Clock:     clock,
		Retry:     RetryPolicy{Attempts: 50, Delay: time.Millisecond},
	}
	f.rebuild()
	return f
}

// rebuild re-creates the services after a test swapped a dependency.
func (f *fixture) rebuild() {
	log := zerolog.Nop()
	f.shipments = NewShipmentService(f.deps, log)
	f.moves = NewMovementService(f.deps, log)
	f.ledger = NewBillingLedger(f.deps, BillingOptions{DueHorizon: 30 * 24 * time.Hour, Location: jakarta}, log)
	f.tracking = NewTrackingProjector(f.deps.Shipments)
}

func registerInput() ports.RegisterShipmentInput {
	return ports.RegisterShipmentInput{
		OriginBranchID:      "JKT",
		DestinationBranchID: "SUB",
		SenderID:            "cust-sender",
		RecipientID:         "cust-recipient",
		ItemDescription:     "spare parts",
		CommodityClass:      "GENERAL",
		PackingType:         "CARTON",
		ItemCount:           2,
		WeightKg:            decimal.NewFromInt(10),
		UnitPricePerKg:      15000,
		PaymentMode:         string(domain.PaymentCashAfterDelivery),
		Actor:               "counter-1",
	}
}

func (f *fixture) register(t *testing.T) *domain.Shipment {
	t.Helper()
	s, err := f.shipments.RegisterShipment(context.Background(), registerInput())
	require.NoError(t, err)
	return s
}

// advance moves s along the forward path until it reaches target.
func (f *fixture) advance(t *testing.T, s *domain.Shipment, target domain.ShipmentStatus) *domain.Shipment {
	t.Helper()
	for s.Status != target {
		next := s.Status.Successors()[0]
		var err error
		s, err = f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
			ShipmentID:   s.ID,
			TargetStatus: string(next),
			Actor:        "ops",
		})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}
	return s
}

func (f *fixture) reload(t *testing.T, id string) *domain.Shipment {
	t.Helper()
	s, err := f.deps.Shipments.FindByID(context.Background(), id)
	require.NoError(t, err)
	return s
}
