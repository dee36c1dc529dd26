package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"adflow/internal/infra"
	"adflow/internal/pipeline"
)

type sweepOptions struct {
	limit    int
	schedule string
}

func newSweepCmd() *cobra.Command {
	var opts sweepOptions
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Process pending expansions and image translations",
		Long: `Sweep runs one bounded pass over pending and stale work and exits.
With --schedule (or SWEEP_SCHEDULE) it repeats on a cron schedule until
interrupted; a pass still running when the next one is due is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if !cmd.Flags().Changed("limit") {
				opts.limit = cfg.SweepBatchSize
			}
			if opts.schedule == "" {
				opts.schedule = cfg.SweepSchedule
			}
			if opts.schedule == "" {
				_, err := runSweep(cmd.Context(), rt.Service, logger, opts.limit)
				return err
			}
			return scheduleSweeps(cmd.Context(), rt.Service, logger, opts)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum items of each kind per pass")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "cron expression (5 fields or @every) to repeat the sweep")
	return cmd
}

// sweeper is the part of the service a sweep needs.
type sweeper interface {
	Sweep(ctx context.Context, limit int) (pipeline.SweepReport, error)
}

func runSweep(ctx context.Context, svc sweeper, logger infra.Logger, limit int) (pipeline.SweepReport, error) {
	report, err := svc.Sweep(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("worker: sweep failed")
		return report, err
	}
	logger.Info().
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("worker: sweep done")
	return report, nil
}

func scheduleSweeps(ctx context.Context, svc sweeper, logger infra.Logger, opts sweepOptions) error {
	clog := cronLogger{l: logger}
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	if _, err := c.AddFunc(opts.schedule, func() {
		_, _ = runSweep(ctx, svc, logger, opts.limit)
	}); err != nil {
		return fmt.Errorf("sweep: invalid schedule %q: %w", opts.schedule, err)
	}
	logger.Info().Str("schedule", opts.schedule).Int("limit", opts.limit).Msg("worker: sweep scheduled")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger routes cron's own logging into zerolog.
type cronLogger struct {
	l infra.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
