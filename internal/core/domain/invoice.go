package domain

import (
	"fmt"
	"math"
	"time"
)

// SettlementStatus of an invoice.
type SettlementStatus string

const (
	SettlementOutstanding SettlementStatus = "BELUM LUNAS"
	SettlementSettled     SettlementStatus = "LUNAS"
)

// CustomerRole is the side of the shipment the billed customer is on.
type CustomerRole string

const (
	RoleSenderPays    CustomerRole = "SENDER"
	RoleRecipientPays CustomerRole = "RECIPIENT"
)

func (r CustomerRole) Valid() bool {
	return r == RoleSenderPays || r == RoleRecipientPays
}

// InvoiceLine is the price snapshot of one member shipment taken at creation.
type InvoiceLine struct {
	ShipmentID     string `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number"`
	Price          int64  `json:"price"`
}

// Installment is one termin payment.
type Installment struct {
	Sequence   int       `json:"sequence"`
	PaidAt     time.Time `json:"paid_at"`
	Amount     int64     `json:"amount"`
	Note       string    `json:"note,omitempty"`
	RecordedBy string    `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Invoice is the collection aggregate. Lines are immutable once created;
// only Installments and the derived fields change afterwards.
type Invoice struct {
	ID           string           `json:"id"`
	Number       string           `json:"number"`
	CustomerID   string           `json:"customer_id"`
	CustomerRole CustomerRole     `json:"customer_role"`
	BranchID     string           `json:"branch_id"`
	Lines        []InvoiceLine    `json:"lines"`
	Installments []Installment    `json:"installments"`
	Total        int64            `json:"total"`
	Status       SettlementStatus `json:"status"`
	Overdue      bool             `json:"overdue"`
	DueAt        time.Time        `json:"due_at"`
	SettledAt    *time.Time       `json:"settled_at,omitempty"`
	VoidedAt     *time.Time       `json:"voided_at,omitempty"`
	VoidReason   string           `json:"void_reason,omitempty"`
	VoidedBy     string           `json:"voided_by,omitempty"`
	CreatedBy    string           `json:"created_by"`
	Version      int64            `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewInvoiceParams carries everything needed to open an invoice.
type NewInvoiceParams struct {
	ID           string
	Number       string
	CustomerID   string
	CustomerRole CustomerRole
	BranchID     string
	Lines        []InvoiceLine
	Actor        string
	DueHorizon   time.Duration
}

// NewInvoice snapshots the member prices into an outstanding invoice.
func NewInvoice(p NewInvoiceParams, now time.Time) (*Invoice, error) {
	if p.CustomerID == "" || p.BranchID == "" {
		return nil, fmt.Errorf("%w: customer and branch are required", ErrInvalidInvoice)
	}
	if !p.CustomerRole.Valid() {
		return nil, fmt.Errorf("%w: unknown customer role %q", ErrInvalidInvoice, p.CustomerRole)
	}
	if len(p.Lines) == 0 {
		return nil, fmt.Errorf("%w: no member shipments", ErrInvalidInvoice)
	}

	var total int64
	for _, l := range p.Lines {
		if l.Price < 0 {
			return nil, fmt.Errorf("%w: negative price on %s", ErrInvalidInvoice, l.ShipmentID)
		}
		if l.Price > math.MaxInt64-total {
			return nil, fmt.Errorf("%w: total overflows at %s", ErrInvalidInvoice, l.ShipmentID)
		}
		total += l.Price
	}

	now = now.UTC()
	return &Invoice{
		ID:           p.ID,
		Number:       p.Number,
		CustomerID:   p.CustomerID,
		CustomerRole: p.CustomerRole,
		BranchID:     p.BranchID,
		Lines:        append([]InvoiceLine(nil), p.Lines...),
		Installments: []Installment{},
		Total:        total,
		Status:       SettlementOutstanding,
		DueAt:        now.Add(p.DueHorizon),
		CreatedBy:    p.Actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// MemberIDs lists the invoiced shipment ids.
func (inv *Invoice) MemberIDs() []string {
	ids := make([]string, len(inv.Lines))
	for i, l := range inv.Lines {
		ids[i] = l.ShipmentID
	}
	return ids
}

// Active reports whether the invoice still claims its members.
func (inv *Invoice) Active() bool { return inv.VoidedAt == nil }

// PaidTotal sums every installment.
func (inv *Invoice) PaidTotal() int64 {
	var sum int64
	for _, in := range inv.Installments {
		sum += in.Amount
	}
	return sum
}

// Remaining is Total minus PaidTotal. A negative balance means the stored
// aggregate is corrupt and is reported, never clamped.
func (inv *Invoice) Remaining() (int64, error) {
	rem := inv.Total - inv.PaidTotal()
	if rem < 0 {
		return rem, fmt.Errorf("%w: invoice %s remaining %d", ErrBalanceCorrupted, inv.Number, rem)
	}
	return rem, nil
}

// PaymentInput describes one termin to apply.
type PaymentInput struct {
	Amount int64
	PaidAt time.Time
	Note   string
	Actor  string
}

// ApplyPayment appends a termin and settles the invoice when fully paid.
// loc defines the calendar used to reject future-dated payments.
func (inv *Invoice) ApplyPayment(in PaymentInput, now time.Time, loc *time.Location) error {
	remaining, err := inv.Remaining()
	if err != nil {
		return err
	}
	fail := func(e error) error {
		return &PaymentError{InvoiceNumber: inv.Number, Amount: in.Amount, Remaining: remaining, Err: e}
	}

	switch {
	case !inv.Active():
		return fail(ErrInvoiceVoided)
	case inv.Status == SettlementSettled:
		return fail(ErrAlreadySettled)
	case in.Amount <= 0:
		return fail(ErrInvalidAmount)
	case calendarDay(in.PaidAt, loc).After(calendarDay(now, loc)):
		return fail(ErrFutureDatedPayment)
	case in.Amount > remaining:
		return fail(ErrOverpayment)
	}

	next := 1
	if n := len(inv.Installments); n > 0 {
		next = inv.Installments[n-1].Sequence + 1
	}
	inv.Installments = append(inv.Installments, Installment{
		Sequence:   next,
		PaidAt:     in.PaidAt.UTC(),
		Amount:     in.Amount,
		Note:       in.Note,
		RecordedBy: in.Actor,
		RecordedAt: now.UTC(),
	})

	if inv.PaidTotal() == inv.Total {
		settled := in.PaidAt.UTC()
		inv.Status = SettlementSettled
		inv.SettledAt = &settled
		inv.Overdue = false
	}
	inv.UpdatedAt = now.UTC()
	return nil
}

// RecomputeOverdue derives the overdue flag as of asOf and reports whether it
// changed. Settlement status is never touched.
func (inv *Invoice) RecomputeOverdue(asOf time.Time) bool {
	overdue := inv.Active() && inv.Status == SettlementOutstanding && asOf.After(inv.DueAt)
	if overdue == inv.Overdue {
		return false
	}
	inv.Overdue = overdue
	return true
}

// Void releases the member shipments. Only unpaid invoices can be voided.
func (inv *Invoice) Void(reason, actor string, now time.Time) error {
	if !inv.Active() {
		return ErrInvoiceVoided
	}
	if len(inv.Installments) > 0 {
		return fmt.Errorf("%w: invoice %s already has installments", ErrInvalidInvoice, inv.Number)
	}
	t := now.UTC()
	inv.VoidedAt = &t
	inv.VoidReason = reason
	inv.VoidedBy = actor
	inv.Overdue = false
	inv.UpdatedAt = t
	return nil
}

// Clone returns a deep copy safe to mutate.
func (inv *Invoice) Clone() *Invoice {
	c := *inv
	c.Lines = append([]InvoiceLine(nil), inv.Lines...)
	c.Installments = append([]Installment{}, inv.Installments...)
	if inv.SettledAt != nil {
		t := *inv.SettledAt
		c.SettledAt = &t
	}
	if inv.VoidedAt != nil {
		t := *inv.VoidedAt
		c.VoidedAt = &t
	}
	return &c
}

// FormatInvoiceNumber renders INV/<BRANCH>/<YYYYMM>/<SEQ5>.
func FormatInvoiceNumber(branchCode string, month time.Time, seq int64) string {
	return fmt.Sprintf("INV/%s/%s/%05d", branchCode, month.Format("200601"), seq)
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
