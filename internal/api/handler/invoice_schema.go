package handler

import "time"

type createInvoiceRequest struct {
	CustomerID   string   `json:"customer_id"   validate:"required"`
	CustomerRole string   `json:"customer_role" validate:"required,oneof=SENDER RECIPIENT"`
	ShipmentIDs  []string `json:"shipment_ids"  validate:"required,min=1,dive,required"`
	BranchID     string   `json:"branch_id"     validate:"required"`
}

type paymentRequest struct {
	Amount int64  `json:"amount"  validate:"required,gt=0"`
	PaidAt string `json:"paid_at" validate:"required,date" example:"2026-10-16"`
	Note   string `json:"note"`
}

type overdueRequest struct {
	AsOf string `json:"as_of" validate:"omitempty,date" example:"2026-11-20"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type invoiceLineResponse struct {
	ShipmentID     string `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number"`
	Price          int64  `json:"price"`
}

type installmentResponse struct {
	Sequence   int       `json:"sequence"`
	PaidAt     string    `json:"paid_at"`
	Amount     int64     `json:"amount"`
	Note       string    `json:"note,omitempty"`
	RecordedBy string    `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

type invoiceResponse struct {
	ID           string                `json:"id"`
	Number       string                `json:"number"`
	CustomerID   string                `json:"customer_id"`
	CustomerRole string                `json:"customer_role"`
	BranchID     string                `json:"branch_id"`
	Lines        []invoiceLineResponse `json:"lines"`
	Installments []installmentResponse `json:"installments"`
	Total        int64                 `json:"total"`
	PaidTotal    int64                 `json:"paid_total"`
	Remaining    int64                 `json:"remaining"`
	Status       string                `json:"status"`
	Overdue      bool                  `json:"overdue"`
	DueAt        time.Time             `json:"due_at"`
	SettledAt    *time.Time            `json:"settled_at,omitempty"`
	VoidedAt     *time.Time            `json:"voided_at,omitempty"`
	VoidReason   string                `json:"void_reason,omitempty"`
}

type balanceResponse struct {
	InvoiceID string `json:"invoice_id"`
	Remaining int64  `json:"remaining"`
}

type sweepResponse struct {
	Overdue int `json:"overdue"`
}
