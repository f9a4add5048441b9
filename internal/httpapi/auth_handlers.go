package httpapi

import (
	"errors"
	"net/http"

	"authd.io/internal/audit"
	"authd.io/internal/auth"
	"authd.io/internal/obs"
)

type registerRequest struct {
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type userSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type tokenBody struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type sessionBody struct {
	User   userSummary `json:"user"`
	Tokens tokenBody   `json:"tokens"`
}

func newSessionBody(s *auth.Session) sessionBody {
	return sessionBody{
		User:   userSummary{ID: s.User.ID, Email: s.User.Email, FullName: s.User.FullName},
		Tokens: tokenBody{Access: s.Tokens.AccessToken, Refresh: s.Tokens.RefreshToken},
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	const failed = "Registration failed"

	var req registerRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, failed, map[string][]string{"detail": {err.Error()}})
		return
	}
	sess, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Email:           req.Email,
		FullName:        req.FullName,
		Password:        req.Password,
		PasswordConfirm: req.Password2,
	})
	if err != nil {
		obs.ObserveAuth("register", resultLabel(err))
		if fields, ok := formErrors(err, "email", "password", "password2"); ok {
			writeFailure(w, http.StatusBadRequest, failed, fields)
			return
		}
		a.internalError(w, r, failed, err)
		return
	}

	obs.ObserveAuth("register", "ok")
	ctx := auth.ContextWithUser(r.Context(), sess.User.ID)
	_ = audit.LogEvent(ctx, audit.EventUserRegistered, map[string]any{"email": sess.User.Email})
	writeSuccess(w, http.StatusCreated, "User registered successfully", newSessionBody(sess))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	const failed = "Login failed"

	var req loginRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, failed, map[string][]string{"detail": {err.Error()}})
		return
	}
	sess, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.ObserveAuth("login", resultLabel(err))
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrAccountDisabled) {
			_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{
				"email":  auth.NormalizeEmail(req.Email),
				"reason": resultLabel(err),
			})
		}
		if fields, ok := formErrors(err, "email", "password", ""); ok {
			writeFailure(w, http.StatusBadRequest, failed, fields)
			return
		}
		a.internalError(w, r, failed, err)
		return
	}

	obs.ObserveAuth("login", "ok")
	ctx := auth.ContextWithUser(r.Context(), sess.User.ID)
	_ = audit.LogEvent(ctx, audit.EventLoginSucceeded, nil)
	writeSuccess(w, http.StatusOK, "Login successful", newSessionBody(sess))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Token refresh failed", map[string][]string{"detail": {err.Error()}})
		return
	}
	sess, err := a.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		obs.ObserveAuth("refresh", resultLabel(err))
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			writeFailure(w, http.StatusBadRequest, "Refresh token is required",
				map[string][]string{"refresh": {"This field is required"}})
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrAccountDisabled):
			if errors.Is(err, auth.ErrRevoked) {
				_ = audit.LogEvent(r.Context(), audit.EventTokenReuse, nil)
			}
			writeFailure(w, http.StatusUnauthorized, "Invalid or expired refresh token",
				map[string][]string{"token": {tokenMessage(err)}})
		default:
			a.internalError(w, r, "Token refresh failed", err)
		}
		return
	}

	obs.ObserveAuth("refresh", "ok")
	ctx := auth.ContextWithUser(r.Context(), sess.User.ID)
	_ = audit.LogEvent(ctx, audit.EventTokenRefreshed, nil)
	writeSuccess(w, http.StatusOK, "Token refreshed successfully",
		tokenBody{Access: sess.Tokens.AccessToken, Refresh: sess.Tokens.RefreshToken})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Logout failed", map[string][]string{"detail": {err.Error()}})
		return
	}
	user := currentUser(r.Context())
	err := a.auth.Logout(r.Context(), user.ID, req.Refresh)
	if err != nil {
		obs.ObserveAuth("logout", resultLabel(err))
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			writeFailure(w, http.StatusBadRequest, "Refresh token is required",
				map[string][]string{"refresh": {"This field is required"}})
		case errors.Is(err, auth.ErrInvalidToken):
			writeFailure(w, http.StatusBadRequest, "Invalid or expired token",
				map[string][]string{"token": {tokenMessage(err)}})
		default:
			a.internalError(w, r, "Logout failed", err)
		}
		return
	}

	obs.ObserveAuth("logout", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	writeSuccess(w, http.StatusOK, "Logout successful", nil)
}

// formErrors maps a domain error onto per-field form messages. The field
// arguments name where duplicate-email, weak-password and mismatch errors land.
func formErrors(err error, emailField, passwordField, confirmField string) (map[string][]string, bool) {
	var (
		verr *auth.ValidationError
		perr *auth.PolicyError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Fields, true
	case errors.As(err, &perr):
		return map[string][]string{passwordField: perr.Reasons}, true
	case errors.Is(err, auth.ErrDuplicateEmail):
		return map[string][]string{emailField: {"A user with this email already exists."}}, true
	case errors.Is(err, auth.ErrPasswordMismatch) && confirmField != "":
		return map[string][]string{confirmField: {"Password fields do not match."}}, true
	case errors.Is(err, auth.ErrInvalidCredentials):
		return map[string][]string{"non_field_errors": {"Invalid credentials. Please try again."}}, true
	case errors.Is(err, auth.ErrAccountDisabled):
		return map[string][]string{"non_field_errors": {"This account has been deactivated."}}, true
	}
	return nil, false
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrValidation):
		return "invalid_input"
	case errors.Is(err, auth.ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, auth.ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, auth.ErrPasswordMismatch):
		return "password_mismatch"
	case errors.Is(err, auth.ErrIncorrectPassword):
		return "incorrect_password"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, auth.ErrMissingToken):
		return "missing_token"
	case errors.Is(err, auth.ErrExpired):
		return "expired"
	case errors.Is(err, auth.ErrRevoked):
		return "revoked"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token"
	default:
		return "error"
	}
}

func (a *API) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	obs.Logger().ErrorContext(r.Context(), "request_failed",
		"request_id", RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"error", err.Error())
	writeFailure(w, http.StatusInternalServerError, message, map[string][]string{"detail": {"Internal server error"}})
}
