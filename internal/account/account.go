// Package account composes identity operations, session issuance and mail
// delivery into the user-facing credential flows.
package account

import (
	"log/slog"
	"time"

	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/identity"
	"github.com/geocoder89/propertypro/internal/notifications"
	"github.com/geocoder89/propertypro/internal/security"
)

const defaultCompensationTimeout = 10 * time.Second

// Sessions issues bearer tokens. *auth.SessionCodec satisfies it.
type Sessions interface {
	Issue(userID, email string) (string, time.Time, error)
}

// Metrics records flow outcomes. *observability.Prom satisfies it.
type Metrics interface {
	AuthEvent(flow, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) AuthEvent(string, string) {}

type Config struct {
	// BaseURL prefixes the links sent by mail, e.g. https://host/api/v1.
	BaseURL     string
	CompanyName string
	// CompensationTimeout bounds rollback work that runs after the
	// caller's context is gone.
	CompensationTimeout time.Duration
}

type Service struct {
	ids      *identity.Service
	tokens   *security.TokenCodec
	sessions Sessions
	mailer   notifications.Mailer
	cfg      Config
	log      *slog.Logger
	metrics  Metrics

	saga *RegistrationSaga
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewService(ids *identity.Service, tokens *security.TokenCodec, sessions Sessions, mailer notifications.Mailer, cfg Config, opts ...Option) *Service {
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = defaultCompensationTimeout
	}

	s := &Service{
		ids:      ids,
		tokens:   tokens,
		sessions: sessions,
		mailer:   mailer,
		cfg:      cfg,
		log:      slog.Default(),
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.saga = &RegistrationSaga{
		ids:     ids,
		tokens:  tokens,
		mailer:  mailer,
		cfg:     s.cfg,
		log:     s.log,
		metrics: s.metrics,
	}
	return s
}

// AuthResult is returned by every flow that ends with a fresh session.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      user.Public
}

// The links carry the plaintext token. Only its digest is stored.
func confirmationLink(base, token string) string {
	return base + "/auth/email_confirmation/" + token
}

func resetLink(base, token string) string {
	return base + "/auth/password_reset/" + token
}
