package domain

import (
	"encoding/json"
	"time"
)

// MovementKind names the physical operation behind a batch transition.
type MovementKind string

const (
	MovementLoading       MovementKind = "LOADING"
	MovementDeparture     MovementKind = "DEPARTURE"
	MovementLocalDelivery MovementKind = "LOCAL_DELIVERY"
	MovementReturn        MovementKind = "RETURN"
	MovementCustom        MovementKind = "CUSTOM"
)

type movementEdge struct {
	from ShipmentStatus
	to   ShipmentStatus
}

var movementEdges = map[MovementKind]movementEdge{
	MovementLoading:       {StatusPending, StatusMuat},
	MovementDeparture:     {StatusMuat, StatusTransit},
	MovementLocalDelivery: {StatusTransit, StatusLansir},
}

// Edge returns the fixed start and target status of a preset kind.
func (k MovementKind) Edge() (from, to ShipmentStatus, ok bool) {
	e, ok := movementEdges[k]
	return e.from, e.to, ok
}

// KindFor picks the preset matching an edge, or MovementCustom.
func KindFor(from, to ShipmentStatus) MovementKind {
	if to == StatusReturn {
		return MovementReturn
	}
	for k, e := range movementEdges {
		if e.from == from && e.to == to {
			return k
		}
	}
	return MovementCustom
}

// ResourceAssignment references the vehicle and crew of a run. The ids are
// opaque; master data lives elsewhere.
type ResourceAssignment struct {
	VehicleID         string   `json:"vehicle_id,omitempty"`
	DriverID          string   `json:"driver_id,omitempty"`
	CheckerID         string   `json:"checker_id,omitempty"`
	CrewIDs           []string `json:"crew_ids,omitempty"`
	StartOdometerKm   int64    `json:"start_odometer_km,omitempty"`
	EstimatedDuration string   `json:"estimated_duration,omitempty"`
	Reference         string   `json:"reference,omitempty"`
}

// IsZero reports whether nothing was assigned.
func (a ResourceAssignment) IsZero() bool {
	return a.VehicleID == "" && a.DriverID == "" && a.CheckerID == "" &&
		len(a.CrewIDs) == 0 && a.Reference == ""
}

// ClaimKeys lists the run slots the assignment consumes: the dispatch
// reference, and the vehicle for this kind of run.
func (a ResourceAssignment) ClaimKeys(kind MovementKind) []string {
	var keys []string
	if a.Reference != "" {
		keys = append(keys, "slot:"+a.Reference)
	}
	if a.VehicleID != "" {
		keys = append(keys, "vehicle:"+a.VehicleID+":"+string(kind))
	}
	return keys
}

// Notes renders the assignment as the structured note stored on history entries.
func (a ResourceAssignment) Notes(kind MovementKind) string {
	b, err := json.Marshal(struct {
		Kind MovementKind `json:"movement"`
		ResourceAssignment
	}{kind, a})
	if err != nil {
		return string(kind)
	}
	return string(b)
}

// MovementBatch is the unit of an all-or-nothing batch transition.
type MovementBatch struct {
	Kind       MovementKind
	MemberIDs  []string
	From       ShipmentStatus
	To         ShipmentStatus
	Assignment ResourceAssignment
	Actor      string
	Location   string
}

// Members returns the member ids with duplicates and blanks removed.
func (b MovementBatch) Members() []string { return UniqueIDs(b.MemberIDs) }

// UniqueIDs drops blanks and duplicates, keeping first-seen order.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// BatchResult is returned after every member moved.
type BatchResult struct {
	Kind       MovementKind       `json:"kind"`
	Members    []string           `json:"members"`
	From       ShipmentStatus     `json:"from"`
	To         ShipmentStatus     `json:"to"`
	Assignment ResourceAssignment `json:"assignment"`
	AppliedAt  time.Time          `json:"applied_at"`
}
