package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/propertypro/internal/account"
	"github.com/geocoder89/propertypro/internal/actorctx"
	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/identity"
	"github.com/geocoder89/propertypro/internal/policy"
)

const SessionCookieName = "session_token"

// Account is the slice of *account.Service the HTTP layer drives.
type Account interface {
	Register(ctx context.Context, in policy.SignUpInput) (account.RegistrationResult, error)
	ConfirmEmail(ctx context.Context, token string) (account.AuthResult, error)
	Login(ctx context.Context, email, password string) (account.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) (account.AuthResult, error)
	ChangePassword(ctx context.Context, actor user.User, oldPassword, newPassword, confirm string) (account.AuthResult, error)
	Deactivate(ctx context.Context, actor user.User) error
	Profile(ctx context.Context, id string) (user.Public, error)
}

type AuthHandler struct {
	accounts     Account
	secureCookie bool
	timeout      time.Duration
}

func NewAuthHandler(accounts Account, secureCookie bool, timeout time.Duration) *AuthHandler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AuthHandler{accounts: accounts, secureCookie: secureCookie, timeout: timeout}
}

type RegisterRequest struct {
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirm_password"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	PhoneNumber     *string `json:"phone_number"`
	Address         *string `json:"address"`
	Role            string  `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type UpdatePasswordRequest struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

type sessionData struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      user.Public `json:"user"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.accounts.Register(cctx, policy.SignUpInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		PhoneNumber:     req.PhoneNumber,
		Address:         req.Address,
		Role:            req.Role,
	})
	if err != nil {
		RespondFlowError(ctx, err)
		return
	}

	RespondSuccess(ctx, http.StatusCreated,
		fmt.Sprintf("Registration successful. A confirmation email has been sent to %s.", res.User.Email),
		gin.H{"user": res.User},
	)
}

func (h *AuthHandler) ConfirmEmail(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.accounts.ConfirmEmail(cctx, ctx.Param("token"))
	if err != nil {
		RespondFlowError(ctx, err)
		return
	}

	h.respondSession(ctx, "Email confirmed.", res)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.accounts.Login(cctx, req.Email, req.Password)
	if err != nil {
		RespondFlowError(ctx, err)
		return
	}

	h.respondSession(ctx, "Logged in.", res)
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.accounts.ForgotPassword(cctx, req.Email); err != nil {
		RespondFlowError(ctx, err)
		return
	}

	RespondSuccess(ctx, http.StatusOK, "If an account exists for that email, a reset token has been sent.", nil)
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.accounts.ResetPassword(cctx, ctx.Param("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		RespondFlowError(ctx, err)
		return
	}

	h.respondSession(ctx, "Password reset successful.", res)
}

func (h *AuthHandler) UpdatePassword(ctx *gin.Context) {
	actor, ok := actorctx.FromGin(ctx)
	if !ok {
		RespondFlowError(ctx, identity.ErrMissingCredential)
		return
	}

	var req UpdatePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.accounts.ChangePassword(cctx, actor, req.OldPassword, req.NewPassword, req.ConfirmNewPassword)
	if err != nil {
		RespondFlowError(ctx, err)
		return
	}

	h.respondSession(ctx, "Password updated.", res)
}

func (h *AuthHandler) respondSession(ctx *gin.Context, message string, res account.AuthResult) {
	h.setSessionCookie(ctx, res.Token, res.ExpiresAt)

	RespondSuccess(ctx, http.StatusOK, message, sessionData{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      res.User,
	})
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		SessionCookieName,
		token,
		maxAge,
		"/",
		"",
		h.secureCookie,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(SessionCookieName, "", -1, "/", "", h.secureCookie, true)
}
