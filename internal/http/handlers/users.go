package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/geocoder89/propertypro/internal/actorctx"
	"github.com/geocoder89/propertypro/internal/identity"
)

// Profile returns the caller's own sanitized record.
func (h *AuthHandler) Profile(ctx *gin.Context) {
	actor, ok := actorctx.FromGin(ctx)
	if !ok {
		RespondFlowError(ctx, identity.ErrMissingCredential)
		return
	}

	RespondSuccess(ctx, http.StatusOK, "Profile fetched.", gin.H{"user": actor.Public()})
}

// DeactivateProfile soft-deletes the caller; the session cookie is cleared.
func (h *AuthHandler) DeactivateProfile(ctx *gin.Context) {
	actor, ok := actorctx.FromGin(ctx)
	if !ok {
		RespondFlowError(ctx, identity.ErrMissingCredential)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.accounts.Deactivate(cctx, actor); err != nil {
		RespondFlowError(ctx, err)
		return
	}

	h.clearSessionCookie(ctx)
	RespondSuccess(ctx, http.StatusOK, "Account deactivated.", nil)
}

// AdminGetUser looks up any user by id.
func (h *AuthHandler) AdminGetUser(ctx *gin.Context) {
	id := ctx.Param("id")

	if _, err := uuid.Parse(id); err != nil {
		RespondNotFound(ctx, "User not found.")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	u, err := h.accounts.Profile(cctx, id)
	if err != nil {
		RespondFlowError(ctx, err)
		return
	}

	RespondSuccess(ctx, http.StatusOK, "User fetched.", gin.H{"user": u})
}
