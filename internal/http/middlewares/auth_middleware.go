package middlewares

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/propertypro/internal/actorctx"
	"github.com/geocoder89/propertypro/internal/auth"
	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/http/handlers"
	"github.com/geocoder89/propertypro/internal/identity"
)

// Keep these small so tests can fake them easily.
type SessionVerifier interface {
	Verify(token string) (auth.Session, error)
}

// UserResolver is satisfied by *identity.Service.
type UserResolver interface {
	FindSessionUser(ctx context.Context, id, email string) (user.User, error)
	HasPasswordChangedSince(ctx context.Context, id string, issuedAt time.Time) (bool, error)
}

// AuthGate admits a request only when it carries a valid, unrevoked session
// for an active user.
type AuthGate struct {
	sessions SessionVerifier
	users    UserResolver
}

func NewAuthGate(sessions SessionVerifier, users UserResolver) *AuthGate {
	return &AuthGate{sessions: sessions, users: users}
}

func (g *AuthGate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := sessionToken(c)
		if raw == "" {
			handlers.RespondFlowError(c, identity.ErrMissingCredential)
			return
		}

		sess, err := g.sessions.Verify(raw)
		if err != nil {
			handlers.RespondFlowError(c, identity.ErrInvalidSession)
			return
		}

		u, err := g.users.FindSessionUser(c.Request.Context(), sess.UserID, sess.Email)
		if err != nil {
			respondResolveError(c, err)
			return
		}

		revoked, err := g.users.HasPasswordChangedSince(c.Request.Context(), sess.UserID, sess.IssuedAt)
		if err != nil {
			respondResolveError(c, err)
			return
		}
		if revoked {
			handlers.RespondFlowError(c, identity.ErrSessionRevoked)
			return
		}

		actorctx.Set(c, u)

		c.Next()
	}
}

// A subject that vanished mid-request is an invalid session, not a 404.
func respondResolveError(c *gin.Context, err error) {
	if errors.Is(err, identity.ErrUserNotFound) {
		err = identity.ErrInvalidSession
	}
	handlers.RespondFlowError(c, err)
}

// sessionToken prefers the Authorization header and falls back to the
// session cookie.
func sessionToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	}

	cookie, err := c.Cookie(handlers.SessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie)
}
