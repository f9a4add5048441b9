package httpapi

import (
	"errors"
	"net/http"

	"authd.io/internal/audit"
	"authd.io/internal/auth"
	"authd.io/internal/obs"
)

type profileUpdateRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}

type changePasswordRequest struct {
	OldPassword  string `json:"old_password"`
	NewPassword  string `json:"new_password"`
	NewPassword2 string `json:"new_password2"`
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getProfile(w, r)
	case http.MethodPut, http.MethodPatch:
		a.updateProfile(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPatch)
	}
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.Profile(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		a.internalError(w, r, "Profile lookup failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile retrieved successfully", user)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	const failed = "Profile update failed"

	var req profileUpdateRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, failed, map[string][]string{"detail": {err.Error()}})
		return
	}
	before := currentUser(r.Context())
	user, err := a.auth.UpdateProfile(r.Context(), before.ID, auth.ProfileUpdate{
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		obs.ObserveAuth("profile_update", resultLabel(err))
		if fields, ok := formErrors(err, "email", "", ""); ok {
			writeFailure(w, http.StatusBadRequest, failed, fields)
			return
		}
		a.internalError(w, r, failed, err)
		return
	}

	obs.ObserveAuth("profile_update", "ok")
	changed := make([]string, 0, 2)
	if user.Email != before.Email {
		changed = append(changed, "email")
	}
	if user.FullName != before.FullName {
		changed = append(changed, "full_name")
	}
	_ = audit.LogEvent(r.Context(), audit.EventProfileUpdated, map[string]any{"changed": changed})
	writeSuccess(w, http.StatusOK, "Profile updated successfully", user)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	const failed = "Password change failed"

	var req changePasswordRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, failed, map[string][]string{"detail": {err.Error()}})
		return
	}
	err := a.auth.ChangePassword(r.Context(), currentUser(r.Context()).ID, auth.ChangePasswordInput{
		OldPassword:        req.OldPassword,
		NewPassword:        req.NewPassword,
		NewPasswordConfirm: req.NewPassword2,
	})
	if err != nil {
		obs.ObserveAuth("change_password", resultLabel(err))
		var (
			verr *auth.ValidationError
			perr *auth.PolicyError
		)
		switch {
		case errors.As(err, &verr):
			writeFailure(w, http.StatusBadRequest, "All fields are required", verr.Fields)
		case errors.Is(err, auth.ErrIncorrectPassword):
			writeFailure(w, http.StatusBadRequest, failed,
				map[string][]string{"old_password": {"Current password is incorrect"}})
		case errors.Is(err, auth.ErrPasswordMismatch):
			writeFailure(w, http.StatusBadRequest, failed,
				map[string][]string{"new_password2": {"New passwords do not match"}})
		case errors.As(err, &perr):
			writeFailure(w, http.StatusBadRequest, failed, map[string][]string{"new_password": perr.Reasons})
		default:
			a.internalError(w, r, failed, err)
		}
		return
	}

	obs.ObserveAuth("change_password", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventPasswordChanged, nil)
	writeSuccess(w, http.StatusOK, "Password changed successfully", nil)
}
