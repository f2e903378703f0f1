package ports

import (
	"context"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// EventRepository keeps the status_events audit trail.
type EventRepository interface {
	// InsertEvent appends an applied transition to the audit trail. Failures
	// are non-fatal for callers.
	InsertEvent(ctx context.Context, event *domain.TrackingEvent) error
}
