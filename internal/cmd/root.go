package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kargonusa/freight-core/internal/pkg/config"
	"github.com/kargonusa/freight-core/pkg/logger"
)

// CommandFactory builds the command tree. Tests swap Load to inject config.
type CommandFactory struct {
	Load func(ctx context.Context) (*config.Config, error)
}

var defaultCommandFactory = CommandFactory{Load: config.Load}

func (f CommandFactory) CreateRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "freightd",
		Short:         "Freight core: shipment note lifecycle, batch movements and termin billing",
		Long:          `freightd serves the freight core HTTP API and runs its maintenance jobs. Configuration is read from the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		f.CreateServeCommand(),
		f.CreateSweepOverdueCommand(),
		f.CreateEnsureIndexesCommand(),
	)
	return root
}

// setup loads configuration and initialises the process logger.
func (f CommandFactory) setup(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := f.Load(ctx)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: "freightd",
	})
	return cfg, log, nil
}

func Execute() {
	if err := defaultCommandFactory.CreateRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
