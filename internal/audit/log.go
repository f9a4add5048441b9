package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"authd.io/internal/auth"
	"authd.io/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// Event names emitted by the session workflows.
const (
	EventUserRegistered  = "auth.user.registered"
	EventLoginSucceeded  = "auth.login.succeeded"
	EventLoginFailed     = "auth.login.failed"
	EventTokenRefreshed  = "auth.token.refreshed"
	EventTokenReuse      = "auth.token.reuse"
	EventLogout          = "auth.logout"
	EventPasswordChanged = "auth.password.changed"
	EventProfileUpdated  = "auth.profile.updated"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and user context.
// Callers must not pass secrets (passwords, raw tokens) in fields.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := []slog.Attr{
		slog.String("type", "audit"),
		slog.String("event", event),
		slog.String("occurred_at", time.Now().UTC().Format(time.RFC3339Nano)),
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	attrs = append(attrs, slog.Any("fields", copyFields))

	obs.Logger().LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}
