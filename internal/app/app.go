// Package app assembles the HTTP service from configuration and the
// infrastructure handles opened by the caller.
package app

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/geocoder89/propertypro/internal/account"
	"github.com/geocoder89/propertypro/internal/auth"
	"github.com/geocoder89/propertypro/internal/config"
	httpx "github.com/geocoder89/propertypro/internal/http"
	"github.com/geocoder89/propertypro/internal/http/handlers"
	"github.com/geocoder89/propertypro/internal/http/middlewares"
	"github.com/geocoder89/propertypro/internal/identity"
	"github.com/geocoder89/propertypro/internal/notifications"
	"github.com/geocoder89/propertypro/internal/observability"
	"github.com/geocoder89/propertypro/internal/redisclient"
	"github.com/geocoder89/propertypro/internal/security"
)

type Infra struct {
	Store  identity.Store
	Mailer notifications.Mailer

	// Optional. Without Redis the rate limiter is per process.
	Redis *redisclient.Client
	// Optional readiness probe for the database.
	DBPing func(ctx context.Context) error
}

// NewMailer picks SMTP when a host is configured and the logging mailer
// otherwise.
func NewMailer(cfg config.Config, log *slog.Logger) notifications.Mailer {
	if cfg.Mail.Host == "" {
		return notifications.NewLogMailer(log)
	}

	return notifications.NewSMTPMailer(notifications.SMTPConfig{
		Host:        cfg.Mail.Host,
		Port:        cfg.Mail.Port,
		Username:    cfg.Mail.Username,
		Password:    cfg.Mail.Password,
		From:        cfg.Mail.Sender,
		CompanyName: cfg.Mail.CompanyName,
	})
}

func NewRouter(cfg config.Config, infra Infra, log *slog.Logger, prom *observability.Prom) (*gin.Engine, error) {
	tokens, err := security.NewTokenCodec(cfg.TokenSecret)
	if err != nil {
		return nil, oops.In("app").With("component", "token codec").Wrap(err)
	}

	sessions, err := auth.NewSessionCodec(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return nil, oops.In("app").With("component", "session codec").Wrap(err)
	}

	ids := identity.NewService(infra.Store, tokens)

	mailer := notifications.NewMeteredMailer(
		notifications.NewProtectedMailer(infra.Mailer, notifications.ProtectedMailerConfig{Timeout: cfg.Mail.Timeout}),
		prom,
	)

	accounts := account.NewService(ids, tokens, sessions, mailer,
		account.Config{
			BaseURL:     cfg.BaseURL,
			CompanyName: cfg.Mail.CompanyName,
		},
		account.WithLogger(log),
		account.WithMetrics(prom),
	)

	checks := map[string]handlers.Check{}
	if infra.DBPing != nil {
		checks["postgres"] = infra.DBPing
	}

	var limiter middlewares.Limiter = middlewares.NewMemoryLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	if infra.Redis != nil {
		limiter = middlewares.NewRedisLimiter(infra.Redis.Raw(), cfg.RateLimit, cfg.RateLimitWindow)
		checks["redis"] = infra.Redis.Ping
	}

	return httpx.NewRouter(httpx.Deps{
		Log:            log,
		Prom:           prom,
		Accounts:       accounts,
		Gate:           middlewares.NewAuthGate(sessions, ids),
		Limiter:        limiter,
		Checks:         checks,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Production:     cfg.IsProd(),
	}), nil
}
