package ports

import (
	"context"
	"time"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// CreateInvoiceInput selects shipment notes of one customer for collection.
type CreateInvoiceInput struct {
	CustomerID        string
	CustomerRole      string
	MemberShipmentIDs []string
	BranchID          string
	Actor             string
}

// AddPaymentInput records one termin.
type AddPaymentInput struct {
	InvoiceID string
	Amount    int64
	PaidAt    time.Time
	Note      string
	Actor     string
}

// BillingService is the collection ledger.
type BillingService interface {
	CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*domain.Invoice, error)
	AddPayment(ctx context.Context, in AddPaymentInput) (*domain.Invoice, error)
	MarkOverdue(ctx context.Context, invoiceID string, asOf time.Time) (*domain.Invoice, error)
	SweepOverdue(ctx context.Context, asOf time.Time) (int, error)
	RemainingBalance(ctx context.Context, invoiceID string) (int64, error)
	GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	VoidInvoice(ctx context.Context, invoiceID, reason, actor string) (*domain.Invoice, error)
}
