package ports

import (
	"context"
	"time"
)

// Domain event types published after a successful commit.
const (
	EventShipmentTransitioned = "shipment.transitioned"
	EventBatchMoved           = "movement.batch_moved"
	EventReturnDispatched     = "return.dispatched"
	EventReturnReceived       = "return.received"
	EventInvoiceCreated       = "invoice.created"
	EventPaymentRecorded      = "invoice.payment_recorded"
	EventInvoiceSettled       = "invoice.settled"
)

// DomainEvent is the envelope handed to notification collaborators.
type DomainEvent struct {
	Type        string    `json:"type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Payload     any       `json:"payload"`
}

// EventPublisher delivers domain events. Publishing is best effort: callers
// log failures and never roll back a committed change because of them.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	Close() error
}
