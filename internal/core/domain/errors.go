package domain

import (
	"errors"
	"fmt"
)

// Shipment lifecycle.
var (
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrTerminalState          = errors.New("shipment is in a terminal state")
	ErrMissingForwardingAgent = errors.New("forwarding agent is required for this forwarding code")
	ErrShipmentNotFound       = errors.New("shipment not found")
	ErrInvalidShipment        = errors.New("invalid shipment")
	ErrNotPending             = errors.New("shipment has left PENDING")
)

// Batch movement.
var (
	ErrPreconditionFailed    = errors.New("batch precondition failed")
	ErrEmptyBatch            = errors.New("batch has no members")
	ErrResourceExhausted     = errors.New("resource assignment already consumed")
	ErrReturnNotFound        = errors.New("return batch not found")
	ErrReturnAlreadyReceived = errors.New("return batch already received")
	ErrInvalidReturn         = errors.New("invalid return batch")
)

// Billing.
var (
	ErrAlreadyInvoiced    = errors.New("shipment already invoiced")
	ErrOverpayment        = errors.New("payment exceeds remaining balance")
	ErrFutureDatedPayment = errors.New("payment date is in the future")
	ErrAlreadySettled     = errors.New("invoice already settled")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrInvoiceVoided      = errors.New("invoice is void")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInvalidInvoice     = errors.New("invalid invoice")
	ErrBalanceCorrupted   = errors.New("installments exceed invoice total")
)

// Coordination and access.
var (
	ErrContention      = errors.New("aggregate is busy, retry later")
	ErrLockHeld        = errors.New("lock held by another owner")
	ErrVersionConflict = errors.New("aggregate was modified concurrently")
	ErrForbidden       = errors.New("access forbidden")
)

// TransitionError carries the context of a rejected single-record transition.
type TransitionError struct {
	ShipmentID     string
	TrackingNumber string
	From           ShipmentStatus
	To             ShipmentStatus
	Err            error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s (%s → %s)", e.Err, e.TrackingNumber, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// BatchError reports which member sank a batch.
type BatchError struct {
	Kind     MovementKind
	MemberID string
	Current  ShipmentStatus
	Required ShipmentStatus
	Err      error
}

func (e *BatchError) Error() string {
	if e.MemberID == "" {
		return fmt.Sprintf("%s batch: %s", e.Kind, e.Err)
	}
	if e.Required == "" {
		return fmt.Sprintf("%s batch: member %s: %s", e.Kind, e.MemberID, e.Err)
	}
	return fmt.Sprintf("%s batch: member %s: %s (current %s, required %s)",
		e.Kind, e.MemberID, e.Err, e.Current, e.Required)
}

func (e *BatchError) Unwrap() error { return e.Err }

// PaymentError describes a rejected installment.
type PaymentError struct {
	InvoiceNumber string
	Amount        int64
	Remaining     int64
	Err           error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("invoice %s: %s (amount %d, remaining %d)", e.InvoiceNumber, e.Err, e.Amount, e.Remaining)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// InvoiceError describes a rejected invoice creation.
type InvoiceError struct {
	ShipmentID    string
	InvoiceNumber string // conflicting invoice, if any
	Err           error
}

func (e *InvoiceError) Error() string {
	if e.InvoiceNumber != "" {
		return fmt.Sprintf("shipment %s: %s by %s", e.ShipmentID, e.Err, e.InvoiceNumber)
	}
	return fmt.Sprintf("shipment %s: %s", e.ShipmentID, e.Err)
}

func (e *InvoiceError) Unwrap() error { return e.Err }
