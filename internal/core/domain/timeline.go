package domain

import (
	"sort"
	"time"
)

// TimelineEntry is one customer-facing tracking row.
type TimelineEntry struct {
	Status    ShipmentStatus `json:"status"`
	Label     string         `json:"label"`
	Timestamp time.Time      `json:"timestamp"`
	Location  string         `json:"location,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	Actor     string         `json:"actor,omitempty"`
}

// Timeline is the projected tracking view of a shipment.
type Timeline struct {
	ShipmentID        string          `json:"shipment_id"`
	TrackingNumber    string          `json:"tracking_number"`
	CurrentStatus     ShipmentStatus  `json:"current_status"`
	CurrentLabel      string          `json:"current_label"`
	CurrentStageIndex int             `json:"current_stage_index"`
	Diverted          bool            `json:"diverted"`
	Entries           []TimelineEntry `json:"entries"`
}

// ProjectTimeline derives the timeline from stored history. It never mutates s.
func ProjectTimeline(s *Shipment) Timeline {
	entries := make([]TimelineEntry, len(s.StatusHistory))
	for i, h := range s.StatusHistory {
		entries[i] = TimelineEntry{
			Status:    h.Status,
			Label:     h.Status.Label(),
			Timestamp: h.Timestamp.UTC(),
			Location:  h.Location,
			Notes:     h.Notes,
			Actor:     h.Actor,
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	idx := s.Status.StageIndex()
	return Timeline{
		ShipmentID:        s.ID,
		TrackingNumber:    s.TrackingNumber,
		CurrentStatus:     s.Status,
		CurrentLabel:      s.Status.Label(),
		CurrentStageIndex: idx,
		Diverted:          s.Status == StatusReturn,
		Entries:           entries,
	}
}
