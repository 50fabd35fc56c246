package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/postgres"
)

func migrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect embedded database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			version, err := postgres.MigrationVersion(cmd.Context(), pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema is at version %d\n", version)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			return postgres.MigrationStatus(cmd.Context(), pool)
		},
	})

	return cmd
}
