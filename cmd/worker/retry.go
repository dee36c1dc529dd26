package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCmd() *cobra.Command {
	var stale bool
	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Reset failed image translations of a job to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			res, err := rt.Service.RetryImageTranslations(cmd.Context(), args[0], stale)
			if err != nil {
				return err
			}
			logger.Info().Str("job_id", args[0]).Int("reset", res.Reset).Int("recovered", res.Recovered).Msg("worker: retry done")
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d, recovered %d\n", res.Reset, res.Recovered)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stale, "stale", false, "also recover translations stuck in processing past the stale threshold")
	return cmd
}
