package domain

import "fmt"

// ShipmentStatus represents the lifecycle state of a shipment note (STT).
type ShipmentStatus string

const (
	StatusPending  ShipmentStatus = "PENDING"
	StatusMuat     ShipmentStatus = "MUAT"
	StatusTransit  ShipmentStatus = "TRANSIT"
	StatusLansir   ShipmentStatus = "LANSIR"
	StatusTerkirim ShipmentStatus = "TERKIRIM"
	StatusReturn   ShipmentStatus = "RETURN"
)

// StageDiverted is the stage index reported for shipments that left the
// forward sequence.
const StageDiverted = -1

// ForwardSequence is the canonical happy path. RETURN is not a position on it.
var ForwardSequence = []ShipmentStatus{
	StatusPending,
	StatusMuat,
	StatusTransit,
	StatusLansir,
	StatusTerkirim,
}

// validTransitions is the single authoritative edge table. MUAT → RETURN is
// intentionally absent.
var validTransitions = map[ShipmentStatus][]ShipmentStatus{
	StatusPending:  {StatusMuat},
	StatusMuat:     {StatusTransit},
	StatusTransit:  {StatusLansir, StatusReturn},
	StatusLansir:   {StatusTerkirim, StatusReturn},
	StatusTerkirim: {StatusReturn},
	StatusReturn:   nil,
}

var stageLabels = map[ShipmentStatus]string{
	StatusPending:  "Shipment received at origin branch",
	StatusMuat:     "Loaded for line haul",
	StatusTransit:  "In transit between branches",
	StatusLansir:   "Out for delivery",
	StatusTerkirim: "Delivered",
	StatusReturn:   "Returned to origin",
}

// ParseStatus converts a raw value into a known status.
func ParseStatus(raw string) (ShipmentStatus, error) {
	s := ShipmentStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, raw)
	}
	return s, nil
}

// Valid reports whether s is one of the defined statuses.
func (s ShipmentStatus) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no outgoing edge leaves s.
func (s ShipmentStatus) IsTerminal() bool {
	return s.Valid() && len(validTransitions[s]) == 0
}

// Successors returns a copy of the allowed next statuses.
func (s ShipmentStatus) Successors() []ShipmentStatus {
	out := make([]ShipmentStatus, len(validTransitions[s]))
	copy(out, validTransitions[s])
	return out
}

// StageIndex is the position of s on ForwardSequence, or -1 for RETURN and
// unknown values.
func (s ShipmentStatus) StageIndex() int {
	for i, st := range ForwardSequence {
		if st == s {
			return i
		}
	}
	return StageDiverted
}

// Label is the customer-facing stage label.
func (s ShipmentStatus) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// CanReturn reports whether a shipment in s may join a return run.
func (s ShipmentStatus) CanReturn() bool {
	return s.CanTransitionTo(StatusReturn)
}
