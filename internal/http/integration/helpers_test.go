package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/geocoder89/propertypro/internal/app"
	"github.com/geocoder89/propertypro/internal/config"
	"github.com/geocoder89/propertypro/internal/identity"
	"github.com/geocoder89/propertypro/internal/notifications"
	"github.com/geocoder89/propertypro/internal/observability"
)

func testConfig() config.Config {
	return config.Config{
		Env:             "test",
		BaseURL:         "http://localhost:8080/api/v1",
		JWTSecret:       "integration-session-secret",
		TokenSecret:     "integration-token-secret",
		SessionTTL:      time.Hour,
		RateLimit:       1000,
		RateLimitWindow: time.Hour,
		MaxBodyBytes:    10 * 1024,
		Mail: config.MailConfig{
			CompanyName: "PropertyPro",
			Timeout:     time.Second,
		},
	}
}

func newTestServer(t *testing.T, store identity.Store) (*gin.Engine, *notifications.LogMailer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mailer := notifications.NewLogMailer(logger)

	router, err := app.NewRouter(testConfig(), app.Infra{Store: store, Mailer: mailer}, logger, observability.NewProm(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router, mailer
}

type envelope struct {
	Status  string          `json:"status"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind string `json:"kind"`
	} `json:"error"`
}

type sessionData struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Verified bool   `json:"verified"`
	} `json:"user"`
}

func doRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, step string, w *httptest.ResponseRecorder, want int) envelope {
	t.Helper()

	if w.Code != want {
		t.Fatalf("%s got status %d, want %d, body=%s", step, w.Code, want, w.Body.String())
	}

	var env envelope
	mustReadJSON(t, w, &env)
	return env
}

func sessionFrom(t *testing.T, env envelope) sessionData {
	t.Helper()

	var s sessionData
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatalf("failed to unmarshal session: %v", err)
	}
	if s.Token == "" {
		t.Fatalf("expected a session token")
	}
	return s
}

var linkToken = regexp.MustCompile(`/auth/(?:email_confirmation|password_reset)/([0-9a-f]+)`)

func tokenFromMail(t *testing.T, mailer *notifications.LogMailer, to, subject string) string {
	t.Helper()

	msg, ok := mailer.Last(to)
	if !ok {
		t.Fatalf("no mail sent to %s", to)
	}
	if msg.Subject != subject {
		t.Fatalf("last mail to %s has subject %q, want %q", to, msg.Subject, subject)
	}

	m := linkToken.FindStringSubmatch(msg.HTML)
	if m == nil {
		t.Fatalf("no token link in mail: %s", msg.HTML)
	}
	return m[1]
}
