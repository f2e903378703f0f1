package ports

import (
	"context"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// InvoiceRepository persists collection invoices.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	FindByID(ctx context.Context, id string) (*domain.Invoice, error)
	// FindActiveByShipment returns the non-void invoice claiming shipmentID,
	// or domain.ErrInvoiceNotFound.
	FindActiveByShipment(ctx context.Context, shipmentID string) (*domain.Invoice, error)
	// Update is version checked like ShipmentRepository.Update.
	Update(ctx context.Context, inv *domain.Invoice) error
	ListOutstanding(ctx context.Context) ([]*domain.Invoice, error)
}

// ReturnRepository persists return runs.
type ReturnRepository interface {
	Create(ctx context.Context, r *domain.ReturnBatch) error
	FindByID(ctx context.Context, id string) (*domain.ReturnBatch, error)
	Update(ctx context.Context, r *domain.ReturnBatch) error
}
