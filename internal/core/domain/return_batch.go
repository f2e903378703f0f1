package domain

import (
	"fmt"
	"time"
)

// ReturnStatus tracks a return run back to the origin branch.
type ReturnStatus string

const (
	ReturnInProcess ReturnStatus = "PROSES"
	ReturnArrived   ReturnStatus = "SAMPAI"
)

// ReturnBatch groups shipment notes travelling back to their origin.
type ReturnBatch struct {
	ID           string             `json:"id"`
	BranchID     string             `json:"branch_id"`
	MemberIDs    []string           `json:"member_ids"`
	DispatchDate time.Time          `json:"dispatch_date"`
	ArrivalDate  *time.Time         `json:"arrival_date,omitempty"`
	ReceiptRef   string             `json:"receipt_ref,omitempty"`
	Status       ReturnStatus       `json:"status"`
	Assignment   ResourceAssignment `json:"assignment"`
	CreatedBy    string             `json:"created_by"`
	ReceivedBy   string             `json:"received_by,omitempty"`
	Version      int64              `json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Receive records arrival at the origin branch. It happens exactly once.
func (r *ReturnBatch) Receive(arrival time.Time, receiptRef, actor string, now time.Time) error {
	if r.Status == ReturnArrived {
		return ErrReturnAlreadyReceived
	}
	if calendarDay(arrival, time.UTC).Before(calendarDay(r.DispatchDate, time.UTC)) {
		return fmt.Errorf("%w: arrival %s precedes dispatch %s", ErrInvalidReturn,
			arrival.Format(time.DateOnly), r.DispatchDate.Format(time.DateOnly))
	}
	a := arrival.UTC()
	r.ArrivalDate = &a
	r.ReceiptRef = receiptRef
	r.ReceivedBy = actor
	r.Status = ReturnArrived
	r.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a deep copy safe to mutate.
func (r *ReturnBatch) Clone() *ReturnBatch {
	c := *r
	c.MemberIDs = append([]string(nil), r.MemberIDs...)
	c.Assignment.CrewIDs = append([]string(nil), r.Assignment.CrewIDs...)
	if r.ArrivalDate != nil {
		a := *r.ArrivalDate
		c.ArrivalDate = &a
	}
	return &c
}
