package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
	"github.com/kargonusa/freight-core/internal/pkg/metrics"
)

// MovementService coordinates batch transitions. A batch either moves every
// member or none of them.
type MovementService struct {
	deps Dependencies
	log  zerolog.Logger
}

func NewMovementService(deps Dependencies, log zerolog.Logger) *MovementService {
	return &MovementService{deps: deps.withDefaults(), log: log}
}

var _ ports.MovementService = (*MovementService)(nil)

// batchPlan is the internal form of a batch. admit decides whether a member's
// current status may take part; within runs extra writes inside the same
// transactional scope as the member updates.
type batchPlan struct {
	kind       domain.MovementKind
	members    []string
	to         domain.ShipmentStatus
	admit      func(domain.ShipmentStatus) bool
	required   domain.ShipmentStatus
	assignment domain.ResourceAssignment
	actor      string
	location   string
	within     func(ctx context.Context, now time.Time) error
}

type appliedMember struct {
	shipment *domain.Shipment
	from     domain.ShipmentStatus
}

// RunBatchMovement moves every member from StartStatus to TargetStatus.
func (m *MovementService) RunBatchMovement(ctx context.Context, in ports.BatchMovementInput) (*domain.BatchResult, error) {
	start, err := domain.ParseStatus(in.StartStatus)
	if err != nil {
		return nil, err
	}
	target, err := domain.ParseStatus(in.TargetStatus)
	if err != nil {
		return nil, err
	}
	batch := domain.MovementBatch{
		Kind:       domain.KindFor(start, target),
		MemberIDs:  in.MemberIDs,
		From:       start,
		To:         target,
		Assignment: in.Assignment,
		Actor:      in.Actor,
		Location:   in.Location,
	}
	members := batch.Members()
	if len(members) == 0 {
		return nil, &domain.BatchError{Kind: batch.Kind, Err: domain.ErrEmptyBatch}
	}
	if !start.CanTransitionTo(target) {
		return nil, &domain.BatchError{Kind: batch.Kind, Err: fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, start, target)}
	}

	applied, at, err := m.execute(ctx, planFor(batch, members))
	if err != nil {
		return nil, err
	}
	return &domain.BatchResult{
		Kind:       batch.Kind,
		Members:    memberIDs(applied),
		From:       batch.From,
		To:         batch.To,
		Assignment: batch.Assignment,
		AppliedAt:  at,
	}, nil
}

// planFor turns a single-edge batch into a plan admitting only From.
func planFor(b domain.MovementBatch, members []string) batchPlan {
	return batchPlan{
		kind:       b.Kind,
		members:    members,
		to:         b.To,
		admit:      func(s domain.ShipmentStatus) bool { return s == b.From },
		required:   b.From,
		assignment: b.Assignment,
		actor:      b.Actor,
		location:   b.Location,
	}
}

// RunPresetMovement runs a loading, departure or local delivery batch.
func (m *MovementService) RunPresetMovement(ctx context.Context, kind domain.MovementKind, in ports.BatchMovementInput) (*domain.BatchResult, error) {
	from, to, ok := kind.Edge()
	if !ok {
		return nil, &domain.BatchError{Kind: kind, Err: fmt.Errorf("%w: %s has no fixed edge", domain.ErrInvalidTransition, kind)}
	}
	in.StartStatus, in.TargetStatus = string(from), string(to)
	return m.RunBatchMovement(ctx, in)
}

// CreateReturn moves members still in the field back towards their origin and
// records the return run in the same scope.
func (m *MovementService) CreateReturn(ctx context.Context, in ports.CreateReturnInput) (*domain.ReturnBatch, error) {
	members := domain.UniqueIDs(in.MemberIDs)
	if len(members) == 0 {
		return nil, &domain.BatchError{Kind: domain.MovementReturn, Err: domain.ErrEmptyBatch}
	}
	if in.BranchID == "" {
		return nil, fmt.Errorf("%w: branch is required", domain.ErrInvalidReturn)
	}

	var batch *domain.ReturnBatch
	_, _, err := m.execute(ctx, batchPlan{
		kind:       domain.MovementReturn,
		members:    members,
		to:         domain.StatusReturn,
		admit:      domain.ShipmentStatus.CanReturn,
		assignment: in.Assignment,
		actor:      in.Actor,
		within: func(ctx context.Context, now time.Time) error {
			dispatch := in.DispatchDate
			if dispatch.IsZero() {
				dispatch = now
			}
			batch = &domain.ReturnBatch{
				ID:           uuid.NewString(),
				BranchID:     in.BranchID,
				MemberIDs:    members,
				DispatchDate: dispatch.UTC(),
				Status:       domain.ReturnInProcess,
				Assignment:   in.Assignment,
				CreatedBy:    in.Actor,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			return m.deps.Returns.Create(ctx, batch)
		},
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, m.deps.Publisher, m.log, ports.DomainEvent{
		Type:        ports.EventReturnDispatched,
		AggregateID: batch.ID,
		OccurredAt:  batch.CreatedAt,
		Payload:     batch,
	})
	m.log.Info().Str("return_id", batch.ID).Str("branch", batch.BranchID).Int("members", len(members)).Msg("return run dispatched")
	return batch, nil
}

// ReceiveReturn records the arrival of a return run. It succeeds once.
func (m *MovementService) ReceiveReturn(ctx context.Context, in ports.ReceiveReturnInput) (*domain.ReturnBatch, error) {
	var out *domain.ReturnBatch
	err := withRetry(ctx, m.deps.Retry, "receive return", func(ctx context.Context) error {
		release, err := lockAll(ctx, m.deps.Locker, m.log, returnKey(in.ReturnID))
		if err != nil {
			return err
		}
		defer release()

		rb, err := m.deps.Returns.FindByID(ctx, in.ReturnID)
		if err != nil {
			return err
		}
		now := m.deps.Clock.Now()
		arrival := in.ArrivalDate
		if arrival.IsZero() {
			arrival = now
		}
		if err := rb.Receive(arrival, in.ReceiptRef, in.Actor, now); err != nil {
			return err
		}
		if err := m.deps.Returns.Update(ctx, rb); err != nil {
			return err
		}
		out = rb
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrContention) {
			metrics.ContentionTotal.WithLabelValues("return").Inc()
		}
		return nil, err
	}

	publish(ctx, m.deps.Publisher, m.log, ports.DomainEvent{
		Type:        ports.EventReturnReceived,
		AggregateID: out.ID,
		OccurredAt:  out.UpdatedAt,
		Payload:     out,
	})
	m.log.Info().Str("return_id", out.ID).Str("receipt_ref", out.ReceiptRef).Msg("return run received")
	return out, nil
}

func (m *MovementService) GetReturn(ctx context.Context, id string) (*domain.ReturnBatch, error) {
	return m.deps.Returns.FindByID(ctx, id)
}

// execute locks every member, checks every precondition, claims the run's
// resources and then applies all transitions inside one transactional scope.
// Nothing is written unless every member passes.
func (m *MovementService) execute(ctx context.Context, p batchPlan) ([]appliedMember, time.Time, error) {
	var (
		applied []appliedMember
		at      time.Time
	)
	keys := make([]string, len(p.members))
	for i, id := range p.members {
		keys[i] = shipmentKey(id)
	}

	err := withRetry(ctx, m.deps.Retry, "batch movement", func(ctx context.Context) error {
		release, err := lockAll(ctx, m.deps.Locker, m.log, keys...)
		if err != nil {
			return err
		}
		defer release()

		loaded := make([]appliedMember, 0, len(p.members))
		for _, id := range p.members {
			sh, err := m.deps.Shipments.FindByID(ctx, id)
			if err != nil {
				return &domain.BatchError{Kind: p.kind, MemberID: id, Err: fmt.Errorf("%w: %w", domain.ErrPreconditionFailed, err)}
			}
			if !p.admit(sh.Status) {
				return &domain.BatchError{Kind: p.kind, MemberID: id, Current: sh.Status, Required: p.required, Err: domain.ErrPreconditionFailed}
			}
			if err := sh.CheckTransition(p.to); err != nil {
				return &domain.BatchError{Kind: p.kind, MemberID: id, Current: sh.Status, Required: p.required, Err: err}
			}
			loaded = append(loaded, appliedMember{shipment: sh, from: sh.Status})
		}

		if m.deps.Guard != nil && !p.assignment.IsZero() {
			if err := m.deps.Guard.Claim(ctx, p.kind, p.assignment); err != nil {
				return &domain.BatchError{Kind: p.kind, Err: err}
			}
		}

		now := m.deps.Clock.Now()
		notes := p.assignment.Notes(p.kind)
		var moved []appliedMember
		// The runner may invoke the callback again after a transient abort, so
		// each run works on fresh copies of the loaded members.
		err = m.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
			moved = make([]appliedMember, 0, len(loaded))
			for _, a := range loaded {
				sh := a.shipment.Clone()
				if err := sh.ApplyTransition(p.to, domain.TransitionInput{
					Actor:    p.actor,
					Location: p.location,
					Notes:    notes,
				}, now); err != nil {
					return &domain.BatchError{Kind: p.kind, MemberID: sh.ID, Current: a.from, Err: err}
				}
				if err := m.deps.Shipments.Update(ctx, sh); err != nil {
					if errors.Is(err, domain.ErrVersionConflict) {
						return err
					}
					return &domain.BatchError{Kind: p.kind, MemberID: sh.ID, Err: err}
				}
				moved = append(moved, appliedMember{shipment: sh, from: a.from})
			}
			if p.within != nil {
				return p.within(ctx, now)
			}
			return nil
		})
		if err != nil {
			m.releaseClaim(ctx, p)
			return err
		}
		applied, at = moved, now
		return nil
	})
	if err != nil {
		metrics.BatchMovementsTotal.WithLabelValues(string(p.kind), "aborted").Inc()
		if errors.Is(err, domain.ErrContention) {
			metrics.ContentionTotal.WithLabelValues("batch").Inc()
		}
		m.log.Warn().Err(err).Str("kind", string(p.kind)).Int("members", len(p.members)).Msg("batch movement aborted")
		return nil, time.Time{}, err
	}

	for _, a := range applied {
		sh := a.shipment
		audit(ctx, m.deps.Events, m.log, &domain.TrackingEvent{
			ShipmentID:     sh.ID,
			TrackingNumber: sh.TrackingNumber,
			From:           a.from,
			Status:         sh.Status,
			Timestamp:      sh.StatusHistory[len(sh.StatusHistory)-1].Timestamp,
			Source:         sourceBatch,
			Actor:          p.actor,
			Location:       p.location,
			BatchKind:      p.kind,
		})
		metrics.TransitionsTotal.WithLabelValues(string(a.from), string(sh.Status), sourceBatch).Inc()
	}
	metrics.BatchMovementsTotal.WithLabelValues(string(p.kind), "applied").Inc()
	metrics.BatchSize.WithLabelValues(string(p.kind)).Observe(float64(len(applied)))
	publish(ctx, m.deps.Publisher, m.log, ports.DomainEvent{
		Type:        ports.EventBatchMoved,
		AggregateID: p.assignment.Reference,
		OccurredAt:  at,
		Payload: map[string]any{
			"kind":       p.kind,
			"members":    memberIDs(applied),
			"to":         p.to,
			"assignment": p.assignment,
			"actor":      p.actor,
		},
	})
	m.log.Info().
		Str("kind", string(p.kind)).
		Str("to", string(p.to)).
		Int("members", len(applied)).
		Str("actor", p.actor).
		Msg("batch movement applied")
	return applied, at, nil
}

func (m *MovementService) releaseClaim(ctx context.Context, p batchPlan) {
	if m.deps.Guard == nil || p.assignment.IsZero() {
		return
	}
	if err := m.deps.Guard.Release(context.WithoutCancel(ctx), p.kind, p.assignment); err != nil {
		m.log.Warn().Err(err).Str("kind", string(p.kind)).Msg("failed to release resource claim")
	}
}

func memberIDs(applied []appliedMember) []string {
	ids := make([]string, len(applied))
	for i, a := range applied {
		ids[i] = a.shipment.ID
	}
	return ids
}
