package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"authd.io/internal/auth"
	"authd.io/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

type userKey struct{}

// requireAuth resolves the bearer access token into the calling user.
func (a *API) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			writeFailure(w, http.StatusUnauthorized, "Authentication credentials were not provided.",
				map[string][]string{"detail": {err.Error()}})
			return
		}

		user, _, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrAccountDisabled) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				writeFailure(w, http.StatusUnauthorized, "Given token not valid for any token type",
					map[string][]string{"token": {tokenMessage(err)}})
				return
			}
			obs.Logger().ErrorContext(r.Context(), "authenticate_failed",
				"request_id", RequestIDFromContext(r.Context()), "error", err.Error())
			writeError(w, http.StatusInternalServerError, "Authentication error")
			return
		}

		ctx := auth.ContextWithUser(r.Context(), user.ID)
		ctx = context.WithValue(ctx, userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey{}).(*auth.User)
	return u
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return "Token is expired"
	case errors.Is(err, auth.ErrRevoked):
		return "Token is blacklisted"
	case errors.Is(err, auth.ErrWrongType):
		return "Token has wrong type"
	case errors.Is(err, auth.ErrAccountDisabled):
		return "User is inactive"
	default:
		return "Token is invalid"
	}
}
