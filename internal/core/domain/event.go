package domain

import "time"

// TrackingEvent is the audit record written for every applied transition.
type TrackingEvent struct {
	ShipmentID     string
	TrackingNumber string
	From           ShipmentStatus
	Status         ShipmentStatus
	Timestamp      time.Time
	Source         string
	Actor          string
	Location       string
	BatchKind      MovementKind // empty for single-record transitions
}
