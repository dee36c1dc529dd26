package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"adflow/internal/bootstrap"
	"adflow/internal/infra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Background processing for the adflow pipeline",
		Long: `Worker applies the database schema and drives pending image work.

sweep picks up pending and abandoned expansions and translations; retry resets
the failed translations of one job.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newMigrateCmd(), newSweepCmd(), newRetryCmd())

	return cmd
}

// loadRuntime reads configuration and wires the service for one command.
func loadRuntime(cmd *cobra.Command) (*infra.Config, infra.Logger, *bootstrap.Runtime, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, infra.Logger{}, nil, err
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel).With().Str("cmd", cmd.Name()).Logger()
	rt, err := bootstrap.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, logger, nil, err
	}
	return cfg, logger, rt, nil
}
