package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-license-orderflow/internal/storage/postgres"
)

func migrateCmd(load loader) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema migrations",
		Long: `Apply the embedded Postgres migrations in filename order.

Already applied migrations are skipped, and concurrent runs wait on an
advisory lock. DynamoDB tables are provisioned outside this tool.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if dsn == "" {
				dsn = cfg.Store.PostgresDSN
			}
			if dsn == "" {
				return fmt.Errorf("no postgres dsn: set --dsn or store.postgres_dsn")
			}

			ctx := cmd.Context()
			pool, err := postgres.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (default store.postgres_dsn)")
	return cmd
}
