package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/propertypro/internal/identity"
	"github.com/geocoder89/propertypro/internal/policy"
)

// Error kinds are part of the public contract.
const (
	KindValidation        = "validation_error"
	KindDuplicateEmail    = "duplicate_email"
	KindInvalidToken      = "invalid_or_expired_token"
	KindInvalidCreds      = "invalid_credentials"
	KindEmailNotVerified  = "email_not_verified"
	KindMissingCredential = "missing_credential"
	KindInvalidSession    = "invalid_session"
	KindSessionRevoked    = "session_revoked"
	KindForbidden         = "forbidden"
	KindNotFound          = "not_found"
	KindMailDelivery      = "mail_delivery_failure"
	KindStorage           = "storage_unavailable"
	KindInternal          = "internal_error"
	KindRateLimited       = "rate_limited"
	KindUnsupportedMedia  = "unsupported_media_type"
	KindPayloadTooLarge   = "payload_too_large"
)

type errorMapping struct {
	target  error
	status  int
	kind    string
	message string
}

var errorMappings = []errorMapping{
	{identity.ErrDuplicateEmail, http.StatusForbidden, KindDuplicateEmail, "An account with this email already exists."},
	{identity.ErrInvalidOrExpiredToken, http.StatusBadRequest, KindInvalidToken, "Token is invalid or has expired."},
	{identity.ErrInvalidCredentials, http.StatusUnauthorized, KindInvalidCreds, "Email or password is incorrect."},
	{identity.ErrEmailNotVerified, http.StatusForbidden, KindEmailNotVerified, "Please confirm your email address before logging in."},
	{identity.ErrMissingCredential, http.StatusUnauthorized, KindMissingCredential, "You are not logged in. Please log in to get access."},
	{identity.ErrInvalidSession, http.StatusUnauthorized, KindInvalidSession, "Invalid session. Please log in again."},
	{identity.ErrSessionRevoked, http.StatusUnauthorized, KindSessionRevoked, "Password was recently changed. Please log in again."},
	{identity.ErrForbidden, http.StatusForbidden, KindForbidden, "You do not have permission to perform this action."},
	{identity.ErrUserNotFound, http.StatusNotFound, KindNotFound, "User not found."},
	{identity.ErrMailDelivery, http.StatusInternalServerError, KindMailDelivery, "There was an error sending the email. Try again later."},
	{identity.ErrStorageUnavailable, http.StatusInternalServerError, KindStorage, "Service temporarily unavailable. Try again later."},
}

// RespondFlowError maps a flow error to its envelope. Server-side failures
// are logged with full detail and surfaced without it.
func RespondFlowError(ctx *gin.Context, err error) {
	var violations policy.Violations
	if errors.As(err, &violations) {
		RespondBadRequest(ctx, "Invalid input data.", map[string][]string(violations))
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				logServerError(ctx, m.kind, err)
			}
			RespondError(ctx, m.status, m.kind, m.message, nil)
			return
		}
	}

	logServerError(ctx, KindInternal, err)
	RespondInternal(ctx, "Something went wrong.")
}

func logServerError(ctx *gin.Context, kind string, err error) {
	slog.Default().ErrorContext(ctx.Request.Context(), "request failed",
		"kind", kind,
		"route", ctx.FullPath(),
		"request_id", requestIDFrom(ctx),
		"err", err,
	)
}
