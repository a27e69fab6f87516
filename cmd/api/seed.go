package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geocoder89/propertypro/internal/db"
)

func NewSeedAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin account from ADMIN_EMAIL / ADMIN_PASSWORD",
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

			created, err := db.EnsureAdminUser(ctx, pool, cfg)
			if err != nil {
				return oops.Code("SEED_FAILED").With("operation", "seed admin").Wrap(err)
			}

			log.Info("admin seed finished", "created", created)
			return nil
		},
	}
}
