package auth

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrValidation         = errors.New("auth: validation failed")
	ErrDuplicateEmail     = errors.New("auth: a user with this email already exists")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountDisabled    = errors.New("auth: account has been deactivated")
	ErrWeakPassword       = errors.New("auth: password does not meet policy")
	ErrPasswordMismatch   = errors.New("auth: password fields do not match")
	ErrIncorrectPassword  = errors.New("auth: current password is incorrect")
	ErrMissingToken       = errors.New("auth: refresh token is required")
)

// ErrInvalidToken is the umbrella for every token failure. The specific
// causes below wrap it, so errors.Is(err, ErrInvalidToken) holds for all of them.
var ErrInvalidToken = errors.New("auth: invalid token")

var (
	ErrInvalidSignature = tokenError("signature is invalid")
	ErrExpired          = tokenError("token is expired")
	ErrWrongType        = tokenError("wrong token type")
	ErrRevoked          = tokenError("token has been revoked")
)

type tokenErr struct{ msg string }

func tokenError(msg string) error { return &tokenErr{msg: msg} }

func (e *tokenErr) Error() string { return "auth: " + e.msg }
func (e *tokenErr) Unwrap() error { return ErrInvalidToken }

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string][]string
}

// Add appends msg to field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no field has been flagged.
func (e *ValidationError) Empty() bool { return e == nil || len(e.Fields) == 0 }

// OrNil returns e when it holds at least one message.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PolicyError lists every password rule the candidate violated.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Reasons, "; ")
}

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }
