// Package identity exposes the atomic state transitions of a user's
// credentials. Each method maps to a single store statement; multi-step
// flows with compensation live in the account package.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/security"
)

const (
	ConfirmationTokenTTL = time.Hour
	ResetTokenTTL        = 10 * time.Minute
)

var tracer = otel.Tracer("github.com/geocoder89/propertypro/internal/identity")

// Store persists user rows and the single token slot per user.
// Lookups return user.ErrNotFound when no row matches. Create returns
// user.ErrEmailTaken on a unique violation. Delete is idempotent.
// MarkVerified and ResetPassword consume the token slot and match only while
// tokenHash is live, reporting user.ErrNotFound otherwise.
type Store interface {
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByTokenHash(ctx context.Context, hash string, now time.Time) (user.User, error)
	MarkVerified(ctx context.Context, id, tokenHash string, now time.Time) error
	SetToken(ctx context.Context, id, hash string, expiresAt time.Time) error
	ClearToken(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	ResetPassword(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Candidate is a validated registration plus the digest of its confirmation token.
type Candidate struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber *string
	Address     *string
	Role        user.Role
	TokenHash   string
}

type Service struct {
	store  Store
	tokens *security.TokenCodec
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, tokens *security.TokenCodec, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Now() time.Time {
	return s.now().UTC()
}

func (s *Service) Create(ctx context.Context, c Candidate) (u user.User, err error) {
	ctx, span := tracer.Start(ctx, "identity.Create", trace.WithAttributes(attribute.String("user.role", string(c.Role))))
	defer func() { endSpan(span, err) }()

	if c.TokenHash == "" {
		return user.User{}, oops.In("identity").Errorf("create: confirmation token hash is required")
	}

	hash, err := security.HashPassword(c.Password)
	if err != nil {
		return user.User{}, oops.In("identity").With("operation", "hash password").Wrap(err)
	}

	role := c.Role
	if !role.IsValid() {
		role = user.RoleUser
	}

	u, err = s.store.Create(ctx, user.NewUser{
		Email:          user.NormalizeEmail(c.Email),
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		PasswordHash:   hash,
		PhoneNumber:    c.PhoneNumber,
		Address:        c.Address,
		Role:           role,
		HashedToken:    c.TokenHash,
		TokenExpiresAt: s.Now().Add(ConfirmationTokenTTL),
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, ErrDuplicateEmail
		}
		return user.User{}, storageErr("create user", err)
	}
	return u, nil
}

// FindByCredentials looks a user up by login email.
func (s *Service) FindByCredentials(ctx context.Context, email string) (u user.User, err error) {
	ctx, span := tracer.Start(ctx, "identity.FindByCredentials")
	defer func() { endSpan(span, ignoreNotFound(err)) }()

	u, err = s.store.GetByEmail(ctx, user.NormalizeEmail(email))
	return u, s.lookupErr("find user by email", err, ErrUserNotFound)
}

func (s *Service) FindByID(ctx context.Context, id string) (u user.User, err error) {
	ctx, span := tracer.Start(ctx, "identity.FindByID", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, ignoreNotFound(err)) }()

	u, err = s.store.GetByID(ctx, id)
	return u, s.lookupErr("find user by id", err, ErrUserNotFound)
}

// FindSessionUser resolves the subject of a session. A user whose email no
// longer matches, or who was deactivated, is reported as not found.
func (s *Service) FindSessionUser(ctx context.Context, id, email string) (user.User, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if u.Email != user.NormalizeEmail(email) || !u.Active {
		return user.User{}, ErrUserNotFound
	}
	return u, nil
}

// FindByToken returns the owner of a live token. An expired token and one
// that was never issued are indistinguishable.
func (s *Service) FindByToken(ctx context.Context, hash string) (u user.User, err error) {
	ctx, span := tracer.Start(ctx, "identity.FindByToken")
	defer func() { endSpan(span, ignoreNotFound(err)) }()

	if hash == "" {
		return user.User{}, ErrInvalidOrExpiredToken
	}

	now := s.Now()

	u, err = s.store.GetByTokenHash(ctx, hash, now)
	if err != nil {
		return user.User{}, s.lookupErr("find user by token", err, ErrInvalidOrExpiredToken)
	}
	if !u.HasTokenAt(now) {
		return user.User{}, ErrInvalidOrExpiredToken
	}
	return u, nil
}

// MarkVerified consumes the confirmation token and flags the email as
// confirmed. A token that was already consumed, replaced or expired since it
// was looked up yields ErrInvalidOrExpiredToken.
func (s *Service) MarkVerified(ctx context.Context, id, tokenHash string) (err error) {
	ctx, span := tracer.Start(ctx, "identity.MarkVerified", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, ignoreNotFound(err)) }()

	return s.lookupErr("mark verified", s.store.MarkVerified(ctx, id, tokenHash, s.Now()), ErrInvalidOrExpiredToken)
}

// IssuePasswordResetToken overwrites the token slot, which invalidates any
// outstanding confirmation or reset token.
func (s *Service) IssuePasswordResetToken(ctx context.Context, id string) (tok security.IssuedToken, err error) {
	ctx, span := tracer.Start(ctx, "identity.IssuePasswordResetToken", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	tok, err = s.tokens.Issue(security.DefaultTokenBytes)
	if err != nil {
		return security.IssuedToken{}, oops.In("identity").With("operation", "issue reset token").Wrap(err)
	}

	if err = s.store.SetToken(ctx, id, tok.Hash, s.Now().Add(ResetTokenTTL)); err != nil {
		return security.IssuedToken{}, s.mutationErr("set reset token", err)
	}
	return tok, nil
}

func (s *Service) ClearToken(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "identity.ClearToken", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	return s.mutationErr("clear token", s.store.ClearToken(ctx, id))
}

// UpdatePassword stores a new hash, stamps password_changed_at and clears the token slot.
func (s *Service) UpdatePassword(ctx context.Context, id, newPlaintext string) (err error) {
	ctx, span := tracer.Start(ctx, "identity.UpdatePassword", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	hash, err := security.HashPassword(newPlaintext)
	if err != nil {
		return oops.In("identity").With("operation", "hash password").Wrap(err)
	}

	return s.mutationErr("update password", s.store.UpdatePassword(ctx, id, hash, s.Now()))
}

// ResetPassword consumes a reset token and stores the new password, with the
// same single-use guarantee as MarkVerified.
func (s *Service) ResetPassword(ctx context.Context, id, tokenHash, newPlaintext string) (err error) {
	ctx, span := tracer.Start(ctx, "identity.ResetPassword", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, ignoreNotFound(err)) }()

	hash, err := security.HashPassword(newPlaintext)
	if err != nil {
		return oops.In("identity").With("operation", "hash password").Wrap(err)
	}

	return s.lookupErr("reset password", s.store.ResetPassword(ctx, id, tokenHash, hash, s.Now()), ErrInvalidOrExpiredToken)
}

// HasPasswordChangedSince is true when a session issued at issuedAt predates
// the user's last password change and must be rejected.
func (s *Service) HasPasswordChangedSince(ctx context.Context, id string, issuedAt time.Time) (bool, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.PasswordChangedAfter(issuedAt), nil
}

func (s *Service) CheckPassword(u user.User, plaintext string) bool {
	return security.PasswordMatches(u.PasswordHash, plaintext)
}

func (s *Service) Deactivate(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "identity.Deactivate", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	return s.mutationErr("deactivate user", s.store.Deactivate(ctx, id))
}

// Delete removes the row. Deleting an id that does not exist is not an error.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "identity.Delete", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	err = s.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return storageErr("delete user", err)
	}
	return nil
}

func (s *Service) lookupErr(op string, err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, user.ErrNotFound):
		return notFound
	default:
		return storageErr(op, err)
	}
}

func (s *Service) mutationErr(op string, err error) error {
	return s.lookupErr(op, err, ErrUserNotFound)
}

func storageErr(op string, err error) error {
	return oops.
		In("identity").
		With("operation", op).
		Wrap(fmt.Errorf("%w: %w", ErrStorageUnavailable, err))
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidOrExpiredToken) {
		return nil
	}
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
