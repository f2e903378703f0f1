package ports

import (
	"context"
	"time"
)

// TrackingEventInput is a status event reported by a scanner or driver app.
type TrackingEventInput struct {
	EventID        string // idempotency token assigned by the sender
	TrackingNumber string
	Status         string
	Timestamp      time.Time
	Source         string
	Actor          string
	Location       string
	Notes          string
}

// EventService processes incoming tracking events.
type EventService interface {
	Process(ctx context.Context, event TrackingEventInput) error
}
