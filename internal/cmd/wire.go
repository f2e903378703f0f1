package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kargonusa/freight-core/internal/api/handler"
	"github.com/kargonusa/freight-core/internal/core/ports"
	"github.com/kargonusa/freight-core/internal/core/service"
	"github.com/kargonusa/freight-core/internal/infrastructure/db/memory"
	mongostore "github.com/kargonusa/freight-core/internal/infrastructure/db/mongo"
	redisstore "github.com/kargonusa/freight-core/internal/infrastructure/db/redis"
	"github.com/kargonusa/freight-core/internal/infrastructure/messaging/kafka"
	"github.com/kargonusa/freight-core/internal/pkg/config"
)

// app holds the wired core and everything that must be closed on exit.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	deps      service.Dependencies
	readiness map[string]handler.Pinger
	closers   []func(ctx context.Context) error

	shipments *service.ShipmentService
	movements *service.MovementService
	billing   *service.BillingLedger
	tracking  *service.TrackingProjector
	events    ports.EventService
}

// buildApp wires the services onto the configured storage and publisher.
func buildApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, readiness: map[string]handler.Pinger{}}

	var err error
	switch cfg.Storage {
	case config.StorageMemory:
		a.wireMemory()
	default:
		err = a.wireMongoRedis(ctx)
	}
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		a.deps.Publisher = pub
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
	} else {
		a.deps.Publisher = kafka.NewLogPublisher(log)
	}

	a.deps.Retry = service.RetryPolicy{
		Attempts: cfg.Coordination.LockRetries,
		Delay:    cfg.Coordination.LockRetryDelay,
	}

	loc, err := cfg.BillingLocation()
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.shipments = service.NewShipmentService(a.deps, log.With().Str("component", "shipments").Logger())
	a.movements = service.NewMovementService(a.deps, log.With().Str("component", "movements").Logger())
	a.billing = service.NewBillingLedger(a.deps, service.BillingOptions{
		DueHorizon: cfg.DueHorizon(),
		Location:   loc,
	}, log.With().Str("component", "billing").Logger())
	a.tracking = service.NewTrackingProjector(a.deps.Shipments)
	a.events = service.NewEventService(a.deps.Shipments, a.shipments, log.With().Str("component", "events").Logger())
	return a, nil
}

func (a *app) wireMemory() {
	a.log.Warn().Msg("running on in-memory storage; state is lost on exit")
	store := memory.NewStore()
	clock := ports.SystemClock{}
	a.deps = service.Dependencies{
		Shipments: memory.NewShipmentRepository(store),
		Invoices:  memory.NewInvoiceRepository(store),
		Returns:   memory.NewReturnRepository(store),
		Sequences: memory.NewSequenceRepository(store),
		Events:    memory.NewEventRepository(store),
		Tx:        store,
		Locker:    memory.NewLocker(),
		Dedup:     memory.NewDedup(a.cfg.Coordination.DedupTTL, clock),
		Guard:     memory.NewResourceGuard(a.cfg.Coordination.ResourceClaimTTL, clock),
	}
}

func (a *app) wireMongoRedis(ctx context.Context) error {
	cfg := a.cfg
	client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Disconnect)
	a.readiness["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

	rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	a.readiness["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

	a.deps = service.Dependencies{
		Shipments: mongostore.NewShipmentRepository(db),
		Invoices:  mongostore.NewInvoiceRepository(db),
		Returns:   mongostore.NewReturnRepository(db),
		Sequences: mongostore.NewSequenceRepository(db),
		Events:    mongostore.NewEventRepository(db),
		Tx:        mongostore.NewTxRunner(client),
		Locker:    redisstore.NewLocker(rdb, cfg.Coordination.LockTTL),
		Dedup:     redisstore.NewDedupChecker(rdb, cfg.Coordination.DedupTTL),
		Guard:     redisstore.NewResourceGuard(rdb, cfg.Coordination.ResourceClaimTTL),
	}
	a.log.Info().Str("mongo_db", cfg.Mongo.Database).Str("redis", cfg.Redis.Addr).Msg("storage connected")
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
