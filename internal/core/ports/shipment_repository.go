package ports

import (
	"context"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// ShipmentRepository defines persistence operations for shipment notes.
// Every method honours a transaction carried in ctx by a TxRunner.
type ShipmentRepository interface {
	Create(ctx context.Context, s *domain.Shipment) error
	FindByID(ctx context.Context, id string) (*domain.Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Shipment, error)
	// Update writes s if the stored version still equals s.Version and then
	// increments s.Version. A stale version yields domain.ErrVersionConflict.
	Update(ctx context.Context, s *domain.Shipment) error
	// DeletePending removes a shipment that is still PENDING.
	DeletePending(ctx context.Context, id string) error
}

// SequenceRepository hands out monotonically increasing numbers per key.
type SequenceRepository interface {
	Next(ctx context.Context, key string) (int64, error)
}
