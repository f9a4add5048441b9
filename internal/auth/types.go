package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the persisted identity record. Email is stored normalized.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	FullName          string     `json:"full_name"`
	IsActive          bool       `json:"is_active"`
	IsStaff           bool       `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastLogin         *time.Time `json:"-"`
	PasswordChangedAt *time.Time `json:"-"`
	// TokenVersion is bumped on every password change. Tokens carry the
	// version they were minted under.
	TokenVersion      int64      `json:"-"`
}

// DisplayName returns the full name, or the email when none is set.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Email
}

// ShortName returns the local part of the email address.
func (u *User) ShortName() string {
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TokenType distinguishes the two halves of a TokenPair.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the JWT claim set carried by both token types.
type Claims struct {
	TokenType  TokenType `json:"token_type"`
	Generation int64     `json:"gen"`
	jwt.RegisteredClaims
}

// TokenPair bundles a short-lived access token and a revocable refresh token.
type TokenPair struct {
	AccessToken      string    `json:"access"`
	RefreshToken     string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Revocation reasons recorded in the ledger.
const (
	ReasonLogout   = "logout"
	ReasonRotation = "rotation"
)

// RevocationEntry marks a refresh token identifier as no longer honored.
type RevocationEntry struct {
	JTI       string
	UserID    string
	Reason    string
	ExpiresAt time.Time
	RevokedAt time.Time
}

// ProfileUpdate holds optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	Email    *string
	FullName *string
}
