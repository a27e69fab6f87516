package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/geocoder89/propertypro/internal/actorctx"
	"github.com/geocoder89/propertypro/internal/domain/user"
)

func TestLogger_RedactsSecretsAndAddsTrace(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "prod")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	log.InfoContext(ctx, "login", "email", "a@b.com", "password", "secret123", "Token", "abc")
	span.End()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}

	if rec["password"] != "[REDACTED]" || rec["Token"] != "[REDACTED]" {
		t.Fatalf("secrets not redacted: %v", rec)
	}
	if rec["email"] != "a@b.com" {
		t.Fatalf("email should be kept: %v", rec)
	}
	if rec["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("trace_id missing: %v", rec)
	}
}

func TestLogger_RedactsBoundAttrsAndAddsActor(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "prod").With("session_token", "abc", "flow", "reset")

	ctx := actorctx.WithUser(context.Background(), user.User{ID: "u-9"})
	log.InfoContext(ctx, "done", slog.Group("req", slog.String("new_password", "p4ss"), slog.String("route", "/x")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}

	if rec["session_token"] != "[REDACTED]" {
		t.Fatalf("bound attribute not redacted: %v", rec)
	}
	if rec["flow"] != "reset" {
		t.Fatalf("non-secret bound attribute lost: %v", rec)
	}

	group, _ := rec["req"].(map[string]any)
	if group["new_password"] != "[REDACTED]" || group["route"] != "/x" {
		t.Fatalf("grouped attributes not handled: %v", rec)
	}
	if rec["user_id"] != "u-9" {
		t.Fatalf("user_id missing: %v", rec)
	}
}

func TestLogger_ExplicitUserIDWins(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "prod")

	ctx := actorctx.WithUser(context.Background(), user.User{ID: "u-1"})
	log.InfoContext(ctx, "x", "user_id", "u-2")

	if n := strings.Count(buf.String(), `"user_id"`); n != 1 {
		t.Fatalf("user_id written %d times: %s", n, buf.String())
	}
	if !strings.Contains(buf.String(), `"user_id":"u-2"`) {
		t.Fatalf("explicit user_id must be kept: %s", buf.String())
	}
}

func TestLogger_DebugOnlyInDev(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "prod").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be off outside dev")
	}

	NewLoggerTo(&buf, "dev").Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("debug must be on in dev")
	}
}

func TestProm_AuthEventsAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm(reg)

	p.AuthEvent("login", "ok")
	p.AuthEvent("login", "ok")
	p.AuthEvent("login", "rejected")
	p.RateLimited("/api/v1/auth/login")
	p.MailResult("sent")

	if got := testutil.ToFloat64(p.AuthEventsTotal.WithLabelValues("login", "ok")); got != 2 {
		t.Fatalf("login ok = %v", got)
	}

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	for _, want := range []string{
		`propertypro_auth_events_total{flow="login",outcome="rejected"} 1`,
		`propertypro_http_rate_limited_total{route="/api/v1/auth/login"} 1`,
		`propertypro_mail_deliveries_total{result="sent"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestProm_GinMiddlewareCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	p := NewProm(reg)

	r := gin.New()
	r.Use(p.GinHandleMiddleware())
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/42", nil))

	if got := testutil.ToFloat64(p.RequestsTotal.WithLabelValues("GET", "/users/:id", "204")); got != 1 {
		t.Fatalf("expected route template label, got %v", got)
	}
}

func TestObserveDB(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB("users.get", func() error { return pgx.ErrNoRows })
	_ = p.ObserveDB("users.create", func() error { return &pgconn.PgError{Code: pgerrcode.UniqueViolation} })

	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.create", "unique_violation")); got != 1 {
		t.Fatalf("unique violation not classified: %v", got)
	}
	if got := testutil.CollectAndCount(p.DbErrorsTotal); got != 1 {
		t.Fatalf("no-rows must not count as an error, series=%d", got)
	}
}

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&pgconn.PgError{Code: pgerrcode.DeadlockDetected}, "deadlock"},
		{&pgconn.PgError{Code: "XX000"}, "pg_XX000"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("connection refused"), "connection"},
		{errors.New("weird"), "unknown"},
	}
	for _, tt := range tests {
		if got := classifyDBErr(tt.err); got != tt.want {
			t.Fatalf("classifyDBErr(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestInitTracer_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "propertypro", "test", "")
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
