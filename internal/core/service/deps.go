package service

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

// Dependencies bundles the collaborators shared by the core services.
// Dedup, Guard and Events are optional.
type Dependencies struct {
	Shipments ports.ShipmentRepository
	Invoices  ports.InvoiceRepository
	Returns   ports.ReturnRepository
	Sequences ports.SequenceRepository
	Events    ports.EventRepository
	Tx        ports.TxRunner
	Locker    ports.Locker
	Dedup     ports.DedupChecker
	Guard     ports.ResourceGuard
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Retry     RetryPolicy
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Clock == nil {
		d.Clock = ports.SystemClock{}
	}
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	d.Retry = d.Retry.normalize()
	return d
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ports.DomainEvent) error { return nil }
func (nopPublisher) Close() error                                      { return nil }

func shipmentKey(id string) string { return "shipment:" + id }
func invoiceKey(id string) string  { return "invoice:" + id }
func returnKey(id string) string   { return "return:" + id }

// lockAll acquires every key or none. Keys are taken in sorted order so two
// overlapping batches contend on the same first key.
func lockAll(ctx context.Context, locker ports.Locker, log zerolog.Logger, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]ports.Unlock, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			// Release on a fresh context so a cancelled request still frees its locks.
			if err := held[i](context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("failed to release lock")
			}
		}
	}
	for _, k := range sorted {
		unlock, err := locker.Acquire(ctx, k)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, unlock)
	}
	return release, nil
}

// publish delivers evt best effort. A committed change is never undone
// because notification failed.
func publish(ctx context.Context, pub ports.EventPublisher, log zerolog.Logger, evt ports.DomainEvent) {
	if err := pub.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("event_type", evt.Type).Str("aggregate_id", evt.AggregateID).Msg("failed to publish domain event")
	}
}

// audit appends the transition to the status_events trail. Non-fatal.
func audit(ctx context.Context, repo ports.EventRepository, log zerolog.Logger, evt *domain.TrackingEvent) {
	if repo == nil {
		return
	}
	if err := repo.InsertEvent(ctx, evt); err != nil {
		log.Warn().Err(err).Str("tracking", evt.TrackingNumber).Msg("failed to insert audit event")
	}
}
