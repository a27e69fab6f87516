package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/geocoder89/propertypro/internal/actorctx"
	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/http/handlers"
	"github.com/geocoder89/propertypro/internal/identity"
)

// Authorize must run after RequireAuth.
func Authorize(roles ...user.Role) gin.HandlerFunc {
	allowed := make(map[user.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		u, ok := actorctx.FromGin(c)
		if !ok {
			handlers.RespondFlowError(c, identity.ErrMissingCredential)
			return
		}

		if _, ok := allowed[u.Role]; !ok {
			handlers.RespondFlowError(c, identity.ErrForbidden)
			return
		}
		c.Next()
	}
}
