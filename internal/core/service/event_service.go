package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kargonusa/freight-core/internal/core/ports"
	"github.com/kargonusa/freight-core/internal/pkg/metrics"
)

type eventService struct {
	shipmentRepo ports.ShipmentRepository
	shipments    ports.ShipmentService
	log          zerolog.Logger
}

// NewEventService returns an EventService that applies scanned status events
// through the shipment service, so they obey the same lock and edge rules as
// API transitions.
func NewEventService(shipmentRepo ports.ShipmentRepository, shipments ports.ShipmentService, log zerolog.Logger) ports.EventService {
	return &eventService{
		shipmentRepo: shipmentRepo,
		shipments:    shipments,
		log:          log,
	}
}

// Process resolves the tracking number and applies the reported status.
// Redelivered events carry the same token and are skipped by the shipment
// service.
func (s *eventService) Process(ctx context.Context, in ports.TrackingEventInput) error {
	start := time.Now()
	label := "error"
	defer func() {
		metrics.EventProcessingDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	shipment, err := s.shipmentRepo.FindByTrackingNumber(ctx, in.TrackingNumber)
	if err != nil {
		return fmt.Errorf("process event: %w", err)
	}

	token := in.EventID
	if token == "" {
		token = fmt.Sprintf("%s|%d", in.Status, in.Timestamp.UnixNano())
	}
	updated, err := s.shipments.ApplyTransition(ctx, ports.TransitionInput{
		ShipmentID:   shipment.ID,
		TargetStatus: in.Status,
		Actor:        in.Actor,
		Location:     in.Location,
		Notes:        in.Notes,
		RequestToken: token,
		Source:       in.Source,
		OccurredAt:   in.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("process event: %w", err)
	}

	label = string(updated.Status)
	s.log.Info().
		Str("tracking", in.TrackingNumber).
		Str("status", in.Status).
		Str("source", in.Source).
		Msg("event processed")
	return nil
}
