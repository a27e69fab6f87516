package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geocoder89/propertypro/internal/db"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending embedded migrations to the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			pool, err := db.NewPool(ctx, cfg.DBURL)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}

			log.Info("migrations completed")
			return nil
		},
	}
}
