package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidSession = errors.New("invalid session token")
	ErrEmptySecret    = errors.New("session signing secret must not be empty")
)

const DefaultSessionTTL = 30 * 24 * time.Hour

type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
	// IssuedAtMs carries the issue time at millisecond precision; the
	// registered iat claim only has seconds.
	IssuedAtMs int64 `json:"iat_ms"`
	jwt.RegisteredClaims
}

// Session is what a verified bearer token proves.
type Session struct {
	UserID   string
	Email    string
	IssuedAt time.Time
}

type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*SessionCodec)

// WithClock overrides the clock used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(c *SessionCodec) { c.now = now }
}

func NewSessionCodec(secret string, ttl time.Duration, opts ...Option) (*SessionCodec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	c := &SessionCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *SessionCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a session token for the user. The returned time is the
// token's issue instant.
func (c *SessionCodec) Issue(userID, email string) (string, time.Time, error) {
	now := c.now().UTC().Truncate(time.Millisecond)

	claims := Claims{
		UserID:     userID,
		Email:      email,
		IssuedAtMs: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, now, nil
}

// Verify checks signature, algorithm and expiry. Every failure is reported
// as ErrInvalidSession so callers cannot tell malformed from expired.
func (c *SessionCodec) Verify(tokenStr string) (Session, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidSession
	}

	if claims.UserID == "" || claims.Email == "" || claims.IssuedAt == nil {
		return Session{}, ErrInvalidSession
	}

	issuedAt := claims.IssuedAt.Time.UTC()
	if claims.IssuedAtMs > 0 {
		issuedAt = time.UnixMilli(claims.IssuedAtMs).UTC()
	}

	return Session{
		UserID:   claims.UserID,
		Email:    claims.Email,
		IssuedAt: issuedAt,
	}, nil
}
