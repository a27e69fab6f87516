package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/geocoder89/propertypro/internal/config"
	"github.com/geocoder89/propertypro/internal/observability"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "propertypro",
		Short:        "PropertyPro identity and credential API",
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedAdminCmd())

	return cmd
}

// bootstrap loads and validates config and installs the process logger.
func bootstrap() (config.Config, *slog.Logger, error) {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}
