package auth

import (
	"context"
	"strings"
)

type userIDContextKey struct{}

// ContextWithUser stores the authenticated user id in the context.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user id from the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(userIDContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
