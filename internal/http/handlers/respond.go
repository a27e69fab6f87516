package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Envelope is the shape of every JSON response.
type Envelope struct {
	Status  string    `json:"status"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Kind      string `json:"kind"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondSuccess(ctx *gin.Context, status int, message string, data any) {
	ctx.JSON(status, Envelope{
		Status:  StatusSuccess,
		Code:    status,
		Message: message,
		Data:    data,
	})
}

// RespondError writes a fail (4xx) or error (5xx) envelope and aborts the
// handler chain.
func RespondError(ctx *gin.Context, status int, kind, message string, details any) {
	s := StatusFail
	if status >= http.StatusInternalServerError {
		s = StatusError
	}

	ctx.AbortWithStatusJSON(status, Envelope{
		Status:  s,
		Code:    status,
		Message: message,
		Error: &APIError{
			Kind:      kind,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details any) {
	RespondError(ctx, http.StatusBadRequest, KindValidation, message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, KindNotFound, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, KindInternal, message, nil)
}
