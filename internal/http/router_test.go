package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geocoder89/propertypro/internal/account"
	"github.com/geocoder89/propertypro/internal/auth"
	"github.com/geocoder89/propertypro/internal/domain/user"
	httpx "github.com/geocoder89/propertypro/internal/http"
	"github.com/geocoder89/propertypro/internal/http/handlers"
	"github.com/geocoder89/propertypro/internal/http/middlewares"
	"github.com/geocoder89/propertypro/internal/identity"
	"github.com/geocoder89/propertypro/internal/observability"
	"github.com/geocoder89/propertypro/internal/policy"
)

// stubAccount fails every flow; routing tests only care about what runs
// before the handler body.
type stubAccount struct{}

func (stubAccount) Register(context.Context, policy.SignUpInput) (account.RegistrationResult, error) {
	return account.RegistrationResult{}, identity.ErrDuplicateEmail
}
func (stubAccount) ConfirmEmail(context.Context, string) (account.AuthResult, error) {
	return account.AuthResult{}, identity.ErrInvalidOrExpiredToken
}
func (stubAccount) Login(context.Context, string, string) (account.AuthResult, error) {
	return account.AuthResult{}, identity.ErrInvalidCredentials
}
func (stubAccount) ForgotPassword(context.Context, string) error { return nil }
func (stubAccount) ResetPassword(context.Context, string, string, string) (account.AuthResult, error) {
	return account.AuthResult{}, identity.ErrInvalidOrExpiredToken
}
func (stubAccount) ChangePassword(context.Context, user.User, string, string, string) (account.AuthResult, error) {
	return account.AuthResult{}, identity.ErrInvalidCredentials
}
func (stubAccount) Deactivate(context.Context, user.User) error { return nil }
func (stubAccount) Profile(context.Context, string) (user.Public, error) {
	return user.Public{}, identity.ErrUserNotFound
}

type tokenTable map[string]auth.Session

func (t tokenTable) Verify(token string) (auth.Session, error) {
	s, ok := t[token]
	if !ok {
		return auth.Session{}, auth.ErrInvalidSession
	}
	return s, nil
}

type userTable map[string]user.User

func (u userTable) FindSessionUser(_ context.Context, id, _ string) (user.User, error) {
	found, ok := u[id]
	if !ok {
		return user.User{}, identity.ErrUserNotFound
	}
	return found, nil
}

func (u userTable) HasPasswordChangedSince(_ context.Context, id string, issuedAt time.Time) (bool, error) {
	found, ok := u[id]
	if !ok {
		return false, identity.ErrUserNotFound
	}
	return found.PasswordChangedAfter(issuedAt), nil
}

func newTestRouter(limit int) http.Handler {
	now := time.Now()

	tokens := tokenTable{
		"admin-token": {UserID: "a-1", Email: "admin@example.com", IssuedAt: now},
		"user-token":  {UserID: "u-1", Email: "user@example.com", IssuedAt: now},
	}
	users := userTable{
		"a-1": {ID: "a-1", Email: "admin@example.com", Role: user.RoleAdmin, Active: true, Verified: true},
		"u-1": {ID: "u-1", Email: "user@example.com", Role: user.RoleUser, Active: true, Verified: true},
	}

	return httpx.NewRouter(httpx.Deps{
		Prom:           observability.NewProm(prometheus.NewRegistry()),
		Accounts:       stubAccount{},
		Gate:           middlewares.NewAuthGate(tokens, users),
		Limiter:        middlewares.NewMemoryLimiter(limit, time.Hour),
		Checks:         map[string]handlers.Check{"postgres": func(context.Context) error { return nil }},
		MaxBodyBytes:   1024,
		RequestTimeout: time.Second,
	})
}

func serve(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.10:5000"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func kindOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var env handlers.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, w.Body.String())
	}
	if env.Error == nil {
		return ""
	}
	return env.Error.Kind
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(100)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		wantStatus int
		wantKind   string
	}{
		{"liveness", http.MethodGet, "/healthz", "", "", http.StatusOK, ""},
		{"readiness", http.MethodGet, "/readyz", "", "", http.StatusOK, ""},
		{"register duplicate", http.MethodPost, "/api/v1/auth/register", "", `{"email":"a@b.com"}`, http.StatusForbidden, handlers.KindDuplicateEmail},
		{"login", http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@b.com","password":"x"}`, http.StatusUnauthorized, handlers.KindInvalidCreds},
		{"confirm via POST without body", http.MethodPost, "/api/v1/auth/email_confirmation/abc", "", "", http.StatusBadRequest, handlers.KindInvalidToken},
		{"profile needs session", http.MethodGet, "/api/v1/users/profile", "", "", http.StatusUnauthorized, handlers.KindMissingCredential},
		{"profile with session", http.MethodGet, "/api/v1/users/profile", "user-token", "", http.StatusOK, ""},
		{"update password needs session", http.MethodPatch, "/api/v1/auth/updatePassword", "", `{}`, http.StatusUnauthorized, handlers.KindMissingCredential},
		{"admin refuses plain user", http.MethodGet, "/api/v1/admin/users/6f1c0a52-7f0e-4c8e-9d1b-2a3c4d5e6f70", "user-token", "", http.StatusForbidden, handlers.KindForbidden},
		{"admin lookup", http.MethodGet, "/api/v1/admin/users/6f1c0a52-7f0e-4c8e-9d1b-2a3c4d5e6f70", "admin-token", "", http.StatusNotFound, handlers.KindNotFound},
		{"unknown route", http.MethodGet, "/api/v1/listings", "", "", http.StatusNotFound, handlers.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.token, tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantKind != "" {
				if kind := kindOf(t, w); kind != tt.wantKind {
					t.Fatalf("got kind %q, want %q", kind, tt.wantKind)
				}
			}
			if w.Header().Get("X-Request-Id") == "" {
				t.Fatalf("missing request id header")
			}
		})
	}
}

func TestRouter_RateLimitsAPI(t *testing.T) {
	r := newTestRouter(2)

	for i := 0; i < 2; i++ {
		serve(r, http.MethodPost, "/api/v1/auth/forgotPassword", "", `{"email":"a@b.com"}`)
	}

	w := serve(r, http.MethodPost, "/api/v1/auth/forgotPassword", "", `{"email":"a@b.com"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", w.Code)
	}

	// health probes sit outside the limited group
	if w := serve(r, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz limited: %d", w.Code)
	}

	w = serve(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "propertypro_http_rate_limited_total") {
		t.Fatalf("metrics missing rate limit counter: %d", w.Code)
	}
}
