package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
	"github.com/kargonusa/freight-core/internal/pkg/metrics"
)

const (
	sourceAPI   = "api"
	sourceBatch = "batch"
)

var _ ports.ShipmentService = (*ShipmentService)(nil)

type ShipmentService struct {
	deps Dependencies
	log  zerolog.Logger
}

func NewShipmentService(deps Dependencies, log zerolog.Logger) *ShipmentService {
	return &ShipmentService{deps: deps.withDefaults(), log: log}
}

// RegisterShipment accepts a new shipment note in PENDING and assigns its
// tracking number from the origin branch's daily sequence.
func (s *ShipmentService) RegisterShipment(ctx context.Context, in ports.RegisterShipmentInput) (*domain.Shipment, error) {
	now := s.deps.Clock.Now()
	params := domain.NewShipmentParams{
		ID:                uuid.NewString(),
		OriginBranchID:    in.OriginBranchID,
		DestinationBranch: in.DestinationBranchID,
		SenderID:          in.SenderID,
		RecipientID:       in.RecipientID,
		ItemDescription:   in.ItemDescription,
		CommodityClass:    in.CommodityClass,
		PackingType:       in.PackingType,
		ItemCount:         in.ItemCount,
		WeightKg:          in.WeightKg,
		UnitPricePerKg:    in.UnitPricePerKg,
		Notes:             in.Notes,
		ForwardingCode:    domain.ForwardingCode(in.ForwardingCode),
		ForwardingAgentID: in.ForwardingAgentID,
		PaymentMode:       domain.PaymentMode(in.PaymentMode),
		Actor:             in.Actor,
	}
	// Validate before consuming a sequence number.
	if _, err := domain.NewShipment(params, now); err != nil {
		return nil, err
	}

	seqKey := fmt.Sprintf("stt:%s:%s", strings.ToUpper(in.OriginBranchID), now.Format("20060102"))
	seq, err := s.deps.Sequences.Next(ctx, seqKey)
	if err != nil {
		return nil, fmt.Errorf("register shipment: next sequence: %w", err)
	}
	params.TrackingNumber = domain.FormatTrackingNumber(in.OriginBranchID, now, seq)

	shipment, err := domain.NewShipment(params, now)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Shipments.Create(ctx, shipment); err != nil {
		s.log.Error().Err(err).Msg("failed to create shipment")
		return nil, err
	}

	metrics.ShipmentsRegisteredTotal.WithLabelValues(string(shipment.PaymentMode)).Inc()
	s.log.Info().
		Str("tracking_number", shipment.TrackingNumber).
		Str("origin_branch", shipment.OriginBranchID).
		Int64("price", shipment.Price).
		Msg("shipment registered")
	return shipment, nil
}

func (s *ShipmentService) GetShipment(ctx context.Context, id string) (*domain.Shipment, error) {
	return s.deps.Shipments.FindByID(ctx, id)
}

// AssignForwardingAgent completes the forwarding leg of a PENDING shipment
// so it can be loaded.
func (s *ShipmentService) AssignForwardingAgent(ctx context.Context, id, agentID, actor string) (*domain.Shipment, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, fmt.Errorf("%w: forwarding agent id is required", domain.ErrInvalidShipment)
	}
	var out *domain.Shipment
	err := withRetry(ctx, s.deps.Retry, "assign forwarding agent", func(ctx context.Context) error {
		release, err := lockAll(ctx, s.deps.Locker, s.log, shipmentKey(id))
		if err != nil {
			return err
		}
		defer release()

		sh, err := s.deps.Shipments.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if sh.Status != domain.StatusPending {
			return fmt.Errorf("%w: %s is %s", domain.ErrNotPending, sh.TrackingNumber, sh.Status)
		}
		if sh.ForwardingCode == domain.ForwardingNone {
			return fmt.Errorf("%w: %s has no forwarding leg", domain.ErrInvalidShipment, sh.TrackingNumber)
		}
		sh.ForwardingAgentID = agentID
		sh.UpdatedAt = s.deps.Clock.Now()
		if err := s.deps.Shipments.Update(ctx, sh); err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tracking_number", out.TrackingNumber).Str("agent_id", agentID).Str("actor", actor).Msg("forwarding agent assigned")
	return out, nil
}

// DeletePending removes a shipment that never left PENDING and is not on an
// active invoice.
func (s *ShipmentService) DeletePending(ctx context.Context, id string) error {
	return withRetry(ctx, s.deps.Retry, "delete shipment", func(ctx context.Context) error {
		release, err := lockAll(ctx, s.deps.Locker, s.log, shipmentKey(id))
		if err != nil {
			return err
		}
		defer release()

		sh, err := s.deps.Shipments.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if sh.Status != domain.StatusPending {
			return fmt.Errorf("%w: %s is %s", domain.ErrNotPending, sh.TrackingNumber, sh.Status)
		}
		if s.deps.Invoices != nil {
			inv, err := s.deps.Invoices.FindActiveByShipment(ctx, id)
			switch {
			case err == nil:
				return &domain.InvoiceError{ShipmentID: id, InvoiceNumber: inv.Number, Err: domain.ErrAlreadyInvoiced}
			case !errors.Is(err, domain.ErrInvoiceNotFound):
				return err
			}
		}
		if err := s.deps.Shipments.DeletePending(ctx, id); err != nil {
			return err
		}
		s.log.Info().Str("tracking_number", sh.TrackingNumber).Msg("pending shipment deleted")
		return nil
	})
}

// ApplyTransition moves one shipment along a single edge. The read, the check
// and the write happen under the shipment's lock; a replayed request token
// returns the current record without transitioning again.
func (s *ShipmentService) ApplyTransition(ctx context.Context, in ports.TransitionInput) (*domain.Shipment, error) {
	target, err := domain.ParseStatus(in.TargetStatus)
	if err != nil {
		recordRejection(err)
		return nil, err
	}
	source := in.Source
	if source == "" {
		source = sourceAPI
	}
	scope := "transition:" + in.ShipmentID

	var (
		out    *domain.Shipment
		from   domain.ShipmentStatus
		replay bool
	)
	err = withRetry(ctx, s.deps.Retry, "apply transition", func(ctx context.Context) error {
		release, err := lockAll(ctx, s.deps.Locker, s.log, shipmentKey(in.ShipmentID))
		if err != nil {
			return err
		}
		defer release()

		if in.RequestToken != "" && s.deps.Dedup != nil {
			dup, err := s.deps.Dedup.IsDuplicate(ctx, scope, in.RequestToken)
			if err != nil {
				s.log.Warn().Err(err).Str("shipment_id", in.ShipmentID).Msg("dedup check failed, processing anyway")
			} else if dup {
				metrics.EventsDedupTotal.WithLabelValues("transition", "hit").Inc()
				cur, err := s.deps.Shipments.FindByID(ctx, in.ShipmentID)
				if err != nil {
					return err
				}
				out, replay = cur, true
				return nil
			}
			metrics.EventsDedupTotal.WithLabelValues("transition", "miss").Inc()
		}

		sh, err := s.deps.Shipments.FindByID(ctx, in.ShipmentID)
		if err != nil {
			return err
		}
		from = sh.Status
		at := s.stamp(in.OccurredAt)
		if err := sh.ApplyTransition(target, domain.TransitionInput{
			Actor:    in.Actor,
			Location: in.Location,
			Notes:    in.Notes,
		}, at); err != nil {
			return err
		}
		if err := s.deps.Shipments.Update(ctx, sh); err != nil {
			return err
		}
		if in.RequestToken != "" && s.deps.Dedup != nil {
			if err := s.deps.Dedup.Mark(ctx, scope, in.RequestToken); err != nil {
				s.log.Warn().Err(err).Str("shipment_id", in.ShipmentID).Msg("failed to set dedup key")
			}
		}
		out = sh
		return nil
	})
	if err != nil {
		recordRejection(err)
		return nil, err
	}
	if replay {
		s.log.Debug().Str("tracking_number", out.TrackingNumber).Str("token", in.RequestToken).Msg("transition replay skipped")
		return out, nil
	}

	last := out.StatusHistory[len(out.StatusHistory)-1]
	audit(ctx, s.deps.Events, s.log, &domain.TrackingEvent{
		ShipmentID:     out.ID,
		TrackingNumber: out.TrackingNumber,
		From:           from,
		Status:         out.Status,
		Timestamp:      last.Timestamp,
		Source:         source,
		Actor:          in.Actor,
		Location:       in.Location,
	})
	publish(ctx, s.deps.Publisher, s.log, ports.DomainEvent{
		Type:        ports.EventShipmentTransitioned,
		AggregateID: out.ID,
		OccurredAt:  last.Timestamp,
		Payload: map[string]any{
			"tracking_number": out.TrackingNumber,
			"from":            from,
			"to":              out.Status,
			"actor":           in.Actor,
		},
	})
	metrics.TransitionsTotal.WithLabelValues(string(from), string(out.Status), source).Inc()
	s.log.Info().
		Str("tracking_number", out.TrackingNumber).
		Str("from", string(from)).
		Str("to", string(out.Status)).
		Str("actor", in.Actor).
		Msg("shipment transitioned")
	return out, nil
}

// stamp picks the history timestamp: a reported time unless it lies in the
// future.
func (s *ShipmentService) stamp(reported time.Time) time.Time {
	now := s.deps.Clock.Now()
	if reported.IsZero() || reported.After(now) {
		return now
	}
	return reported
}

func recordRejection(err error) {
	reason := "other"
	switch {
	case errors.Is(err, domain.ErrTerminalState):
		reason = "terminal_state"
	case errors.Is(err, domain.ErrMissingForwardingAgent):
		reason = "missing_forwarding_agent"
	case errors.Is(err, domain.ErrInvalidTransition):
		reason = "invalid_transition"
	case errors.Is(err, domain.ErrShipmentNotFound):
		reason = "shipment_not_found"
	case errors.Is(err, domain.ErrContention):
		reason = "contention"
		metrics.ContentionTotal.WithLabelValues("transition").Inc()
	}
	metrics.TransitionRejectionsTotal.WithLabelValues(reason).Inc()
}
