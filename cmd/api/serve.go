package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geocoder89/propertypro/internal/app"
	"github.com/geocoder89/propertypro/internal/config"
	"github.com/geocoder89/propertypro/internal/db"
	"github.com/geocoder89/propertypro/internal/observability"
	"github.com/geocoder89/propertypro/internal/redisclient"
	"github.com/geocoder89/propertypro/internal/repo/postgres"
)

var migrateOnStart bool

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply migrations before serving")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "propertypro", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return oops.Code("TRACING_INIT_FAILED").Wrap(err)
	}
	defer func() {
		tctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(tctx)
	}()

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	if migrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			return oops.Code("MIGRATION_FAILED").Wrap(err)
		}
	}

	if created, err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		log.Warn("admin seed failed", "err", err)
	} else if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	rdb := redisclient.New(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	router, err := app.NewRouter(cfg, app.Infra{
		Store:  postgres.NewUsersRepo(pool, prom),
		Mailer: app.NewMailer(cfg, log),
		Redis:  rdb,
		DBPing: pool.Ping,
	}, log, prom)
	if err != nil {
		return err
	}

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return oops.Code("SERVER_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}
