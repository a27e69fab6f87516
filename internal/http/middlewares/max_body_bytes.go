package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/propertypro/internal/http/handlers"
)

// MaxBodyBytes rejects declared oversize bodies up front and caps the rest
// while they are read.
func MaxBodyBytes(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.ContentLength > max {
			handlers.RespondError(ctx, http.StatusRequestEntityTooLarge, handlers.KindPayloadTooLarge,
				fmt.Sprintf("Request body must not exceed %d bytes.", max), nil)
			return
		}

		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)

		ctx.Next()
	}
}
