package observability

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/geocoder89/propertypro/internal/actorctx"
)

// redactedKeys never reach the log output with their value.
var redactedKeys = map[string]struct{}{
	"password":             {},
	"old_password":         {},
	"new_password":         {},
	"confirm_password":     {},
	"confirm_new_password": {},
	"token":                {},
	"authorization":        {},
	"session_token":        {},
}

const redacted = "[REDACTED]"

// ContextHandler redacts credential attributes, including those bound with
// WithAttrs, and stamps each record with the trace and the acting user found
// in ctx.
type ContextHandler struct {
	next slog.Handler
}

func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	hasUser := false
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "user_id" {
			hasUser = true
		}
		out.AddAttrs(redactAttr(a))
		return true
	})

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	if id, ok := actorctx.UserIDFrom(ctx); ok && !hasUser {
		out.AddAttrs(slog.String("user_id", id))
	}

	return h.next.Handle(ctx, out)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &ContextHandler{next: h.next.WithAttrs(clean)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}

	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: v}
	}

	group := v.Group()
	clean := make([]slog.Attr, len(group))
	for i, ga := range group {
		clean[i] = redactAttr(ga)
	}
	return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
}
