package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kargonusa/freight-core/internal/api"
	"github.com/kargonusa/freight-core/internal/infrastructure/queue"
)

const shutdownTimeout = 15 * time.Second

func (f CommandFactory) CreateServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and process scanned status events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, log, err := f.setup(ctx)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to serve the API")
			}

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}

			workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
			dispatcher := queue.NewDispatcher(cfg.Coordination.EventWorkers, a.events, log.With().Str("component", "dispatcher").Logger())
			dispatcher.Start(workerCtx)

			loc, _ := cfg.BillingLocation()
			e := api.NewRouter(api.Services{
				Shipments: a.shipments,
				Tracking:  a.tracking,
				Movements: a.movements,
				Billing:   a.billing,
				Events:    dispatcher,
			}, api.Options{
				JWTSecret:       cfg.JWTSecret,
				BillingLocation: loc,
				Readiness:       a.readiness,
			}, log)

			serveErr := make(chan error, 1)
			go func() {
				log.Info().Str("port", cfg.Port).Str("storage", cfg.Storage).Msg("http server listening")
				if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
				log.Info().Msg("shutting down")
			case err := <-serveErr:
				if err != nil {
					log.Error().Err(err).Msg("http server failed")
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("http shutdown")
			}
			dispatcher.Close()
			drained := make(chan struct{})
			go func() {
				dispatcher.Wait()
				close(drained)
			}()
			select {
			case <-drained:
			case <-shutdownCtx.Done():
				log.Warn().Msg("event queue not drained before shutdown timeout")
				stopWorkers()
				<-drained
			}
			stopWorkers()
			return a.close(shutdownCtx)
		},
	}
}
