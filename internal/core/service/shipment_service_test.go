package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

func TestRegisterShipment_AssignsTrackingNumberAndPrice(t *testing.T) {
	f := newFixture(t)

	first := f.register(t)
	second := f.register(t)

	assert.Equal(t, "JKT-20261016-000001", first.TrackingNumber)
	assert.Equal(t, "JKT-20261016-000002", second.TrackingNumber)
	assert.Equal(t, int64(150000), first.Price)
	assert.Equal(t, domain.StatusPending, first.Status)
	require.Len(t, first.StatusHistory, 1)
	assert.Equal(t, "counter-1", first.StatusHistory[0].Actor)
	assert.NotEmpty(t, first.ID)
}

func TestRegisterShipment_InvalidDoesNotConsumeSequence(t *testing.T) {
	f := newFixture(t)

	bad := registerInput()
	bad.ItemCount = 0
	_, err := f.shipments.RegisterShipment(context.Background(), bad)
	require.ErrorIs(t, err, domain.ErrInvalidShipment)

	agent := registerInput()
	agent.ForwardingCode = string(domain.ForwardingNone)
	agent.ForwardingAgentID = "agent-9"
	_, err = f.shipments.RegisterShipment(context.Background(), agent)
	require.ErrorIs(t, err, domain.ErrInvalidShipment)

	ok := f.register(t)
	assert.Equal(t, "JKT-20261016-000001", ok.TrackingNumber)
}

func TestApplyTransition_ForwardPathWithAuditAndEvents(t *testing.T) {
	f := newFixture(t)
	s := f.register(t)

	s = f.advance(t, s, domain.StatusTerkirim)

	assert.Equal(t, domain.StatusTerkirim, s.Status)
	require.Len(t, s.StatusHistory, 5)
	for i := 1; i < len(s.StatusHistory); i++ {
		assert.False(t, s.StatusHistory[i].Timestamp.Before(s.StatusHistory[i-1].Timestamp))
	}

	events := f.store.Events()
	require.Len(t, events, 4)
	assert.Equal(t, domain.StatusPending, events[0].From)
	assert.Equal(t, domain.StatusMuat, events[0].Status)
	assert.Equal(t, "api", events[0].Source)
	assert.Equal(t, []string{
		ports.EventShipmentTransitioned,
		ports.EventShipmentTransitioned,
		ports.EventShipmentTransitioned,
		ports.EventShipmentTransitioned,
	}, f.publisher.types())
}

func TestApplyTransition_RejectsSkippedEdgeWithoutChange(t *testing.T) {
	f := newFixture(t)
	s := f.register(t)

	_, err := f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: string(domain.StatusTransit),
		Actor:        "ops",
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.StatusPending, te.From)
	assert.Equal(t, domain.StatusTransit, te.To)

	got := f.reload(t, s.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Len(t, got.StatusHistory, 1)
	assert.Zero(t, got.Version)
	assert.Empty(t, f.store.Events())
}

func TestApplyTransition_UnknownTargetStatus(t *testing.T) {
	f := newFixture(t)
	s := f.register(t)

	_, err := f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: "LOST",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyTransition_ReturnIsTerminal(t *testing.T) {
	f := newFixture(t)
	s := f.advance(t, f.register(t), domain.StatusTerkirim)

	s, err := f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: string(domain.StatusReturn),
		Actor:        "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturn, s.Status)

	_, err = f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: string(domain.StatusTerkirim),
		Actor:        "ops",
	})
	require.ErrorIs(t, err, domain.ErrTerminalState)
	assert.Equal(t, domain.StatusReturn, f.reload(t, s.ID).Status)
}

func TestApplyTransition_RequestTokenReplay(t *testing.T) {
	f := newFixture(t)
	s := f.register(t)
	in := ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: string(domain.StatusMuat),
		Actor:        "ops",
		RequestToken: "req-1",
	}

	first, err := f.shipments.ApplyTransition(context.Background(), in)
	require.NoError(t, err)
	replay, err := f.shipments.ApplyTransition(context.Background(), in)
	require.NoError(t, err, "a replayed token must not fail as an invalid transition")

	assert.Equal(t, first.Status, replay.Status)
	assert.Len(t, f.reload(t, s.ID).StatusHistory, 2)
	assert.Len(t, f.store.Events(), 1)
}

func TestApplyTransition_MissingForwardingAgent(t *testing.T) {
	f := newFixture(t)
	in := registerInput()
	in.ForwardingCode = string(domain.ForwardingPaidByRecipient)
	s, err := f.shipments.RegisterShipment(context.Background(), in)
	require.NoError(t, err)

	_, err = f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: string(domain.StatusMuat),
	})
	require.ErrorIs(t, err, domain.ErrMissingForwardingAgent)

	_, err = f.shipments.AssignForwardingAgent(context.Background(), s.ID, "agent-7", "ops")
	require.NoError(t, err)

	s, err = f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: string(domain.StatusMuat),
	})
	require.NoError(t, err)
	assert.Equal(t, "agent-7", s.ForwardingAgentID)

	_, err = f.shipments.AssignForwardingAgent(context.Background(), s.ID, "agent-8", "ops")
	assert.ErrorIs(t, err, domain.ErrNotPending)
}

func TestAssignForwardingAgent_RejectsShipmentWithoutForwarding(t *testing.T) {
	f := newFixture(t)
	s := f.register(t)

	_, err := f.shipments.AssignForwardingAgent(context.Background(), s.ID, "agent-7", "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidShipment)
}

func TestApplyTransition_ContentionWhenLockHeld(t *testing.T) {
	f := newFixture(t)
	f.deps.Retry = RetryPolicy{Attempts: 2}
	f.rebuild()
	s := f.register(t)

	unlock, err := f.locker.Acquire(context.Background(), shipmentKey(s.ID))
	require.NoError(t, err)
	defer func() { _ = unlock(context.Background()) }()

	_, err = f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: string(domain.StatusMuat),
	})
	require.ErrorIs(t, err, domain.ErrContention)
	assert.Equal(t, domain.StatusPending, f.reload(t, s.ID).Status)
}

func TestApplyTransition_ReportedTimeIsClamped(t *testing.T) {
	f := newFixture(t)
	s := f.register(t)
	registered := s.StatusHistory[0].Timestamp

	s, err := f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: string(domain.StatusMuat),
		OccurredAt:   registered.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, registered, s.StatusHistory[1].Timestamp)

	f.clock.Advance(time.Hour)
	reported := f.clock.Now().Add(-10 * time.Minute)
	s, err = f.shipments.ApplyTransition(context.Background(), ports.TransitionInput{
		ShipmentID:   s.ID,
		TargetStatus: string(domain.StatusTransit),
		OccurredAt:   reported,
	})
	require.NoError(t, err)
	assert.Equal(t, reported, s.StatusHistory[2].Timestamp)
}

func TestDeletePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.register(t)
	require.NoError(t, f.shipments.DeletePending(ctx, s.ID))
	_, err := f.shipments.GetShipment(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)

	moved := f.advance(t, f.register(t), domain.StatusMuat)
	assert.ErrorIs(t, f.shipments.DeletePending(ctx, moved.ID), domain.ErrNotPending)

	invoiced := f.register(t)
	_, err = f.ledger.CreateInvoice(ctx, ports.CreateInvoiceInput{
		CustomerID:        "cust-sender",
		CustomerRole:      string(domain.RoleSenderPays),
		MemberShipmentIDs: []string{invoiced.ID},
		BranchID:          "JKT",
	})
	require.NoError(t, err)
	err = f.shipments.DeletePending(ctx, invoiced.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyInvoiced)
	assert.True(t, strings.HasPrefix(err.Error(), "shipment "+invoiced.ID))
}
