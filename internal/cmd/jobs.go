package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	mongostore "github.com/kargonusa/freight-core/internal/infrastructure/db/mongo"
	"github.com/kargonusa/freight-core/internal/pkg/config"
)

func (f CommandFactory) CreateSweepOverdueCommand() *cobra.Command {
	var asOf string
	c := &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Recompute the overdue flag of every outstanding invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := f.setup(ctx)
			if err != nil {
				return err
			}
			ref, err := referenceTime(cfg, asOf)
			if err != nil {
				return err
			}

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(ctx) }()

			n, err := a.billing.SweepOverdue(ctx, ref)
			log.Info().Int("overdue", n).Time("as_of", ref).Msg("overdue sweep finished")
			fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) overdue as of %s\n", n, ref.Format(time.RFC3339))
			return err
		},
	}
	c.Flags().StringVar(&asOf, "as-of", "", "Reference date YYYY-MM-DD on the billing calendar (default now)")
	return c
}

func (f CommandFactory) CreateEnsureIndexesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the MongoDB indexes the repositories rely on",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := f.setup(ctx)
			if err != nil {
				return err
			}
			if cfg.Storage != config.StorageMongo {
				return fmt.Errorf("ensure-indexes needs STORAGE=%s", config.StorageMongo)
			}

			client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect(ctx) }()

			if err := mongostore.EnsureIndexes(ctx, db); err != nil {
				return err
			}
			log.Info().Str("mongo_db", cfg.Mongo.Database).Msg("indexes ensured")
			return nil
		},
	}
}

// referenceTime resolves --as-of to the end of that day on the billing calendar.
func referenceTime(cfg *config.Config, asOf string) (time.Time, error) {
	if asOf == "" {
		return time.Now().UTC(), nil
	}
	loc, err := cfg.BillingLocation()
	if err != nil {
		return time.Time{}, err
	}
	day, err := time.ParseInLocation(time.DateOnly, asOf, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC(), nil
}
