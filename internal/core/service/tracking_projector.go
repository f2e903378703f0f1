package service

import (
	"context"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

// TrackingProjector serves read-only tracking timelines.
type TrackingProjector struct {
	shipments ports.ShipmentRepository
}

var _ ports.TrackingService = (*TrackingProjector)(nil)

func NewTrackingProjector(shipments ports.ShipmentRepository) *TrackingProjector {
	return &TrackingProjector{shipments: shipments}
}

func (p *TrackingProjector) ProjectTimeline(ctx context.Context, shipmentID string) (*domain.Timeline, error) {
	s, err := p.shipments.FindByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	tl := domain.ProjectTimeline(s)
	return &tl, nil
}

func (p *TrackingProjector) ProjectTimelineByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Timeline, error) {
	s, err := p.shipments.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	tl := domain.ProjectTimeline(s)
	return &tl, nil
}
