package main

import (
	"errors"

	"github.com/spf13/cobra"

	"adflow/internal/sqlinline"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.DB == nil {
				return errors.New("migrate: STORE_DRIVER=memory has no schema")
			}
			if _, err := rt.DB.Exec(cmd.Context(), sqlinline.QSchema); err != nil {
				return err
			}
			logger.Info().Msg("worker: schema applied")
			return nil
		},
	}
}
