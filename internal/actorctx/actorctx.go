// Package actorctx carries the authenticated user through gin and
// context.Context.
package actorctx

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/propertypro/internal/domain/user"
)

type ctxKey struct{}

const ginKey = "actor.user"

func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(user.User)
	return u, ok && u.ID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	u, ok := UserFrom(ctx)
	return u.ID, ok
}

// Set attaches u to both the gin context and the request context.
func Set(c *gin.Context, u user.User) {
	c.Set(ginKey, u)
	c.Request = c.Request.WithContext(WithUser(c.Request.Context(), u))
}

func FromGin(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ginKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok && u.ID != ""
}
