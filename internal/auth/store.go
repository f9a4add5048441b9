package auth

import (
	"context"
	"time"
)

// UserStore persists identities. Implementations compare and store email in
// normalized form and must enforce uniqueness at write time.
type UserStore interface {
	// Create inserts u, assigning ID and timestamps when empty. Returns ErrDuplicateEmail
	// when a case-insensitive match exists.
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Update persists email and full name. Returns ErrDuplicateEmail on collision with another user.
	Update(ctx context.Context, u *User) error
	// UpdatePassword stores the new hash and increments TokenVersion.
	UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error
	TouchLogin(ctx context.Context, userID string, at time.Time) error
	// SetActive toggles is_active. Accounts are retired by deactivation,
	// never deleted.
	SetActive(ctx context.Context, userID string, active bool) error
}

// RevocationLedger records refresh token identifiers that must not be honored again.
type RevocationLedger interface {
	// Blacklist records entry atomically. When the jti is already present it
	// returns ErrRevoked, so among concurrent callers exactly one succeeds.
	Blacklist(ctx context.Context, entry RevocationEntry) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	// Purge drops entries whose token expired before the cutoff.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
