package auth

import (
	"context"
	"sync"
	"time"

	"authd.io/internal/ids"
)

// MemoryStore keeps users and revocations in process memory. It backs tests
// and single-node development runs without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string
	revoked map[string]RevocationEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		revoked: make(map[string]RevocationEntry),
		now:     time.Now,
	}
}

// Users returns the UserStore view.
func (m *MemoryStore) Users() UserStore { return memUsers{m} }

// Revocations returns the RevocationLedger view.
func (m *MemoryStore) Revocations() RevocationLedger { return memLedger{m} }

type memUsers struct{ m *MemoryStore }

func (s memUsers) Create(_ context.Context, u *User) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	email := NormalizeEmail(u.Email)
	if _, taken := m.byEmail[email]; taken {
		return ErrDuplicateEmail
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := m.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt
	u.Email = email

	cp := *u
	m.users[u.ID] = &cp
	m.byEmail[email] = u.ID
	return nil
}

func (s memUsers) Find(_ context.Context, id string) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.m.users[id]
	return &cp, nil
}

func (s memUsers) Update(_ context.Context, u *User) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	email := NormalizeEmail(u.Email)
	if owner, taken := m.byEmail[email]; taken && owner != u.ID {
		return ErrDuplicateEmail
	}
	delete(m.byEmail, cur.Email)
	m.byEmail[email] = u.ID
	cur.Email = email
	cur.FullName = u.FullName
	cur.UpdatedAt = m.now().UTC()

	u.Email = email
	u.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s memUsers) UpdatePassword(_ context.Context, userID, passwordHash string, changedAt time.Time) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	cur.PasswordHash = passwordHash
	cur.PasswordChangedAt = &changedAt
	cur.UpdatedAt = changedAt
	cur.TokenVersion++
	return nil
}

func (s memUsers) TouchLogin(_ context.Context, userID string, at time.Time) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	cur.LastLogin = &at
	return nil
}

func (s memUsers) SetActive(_ context.Context, userID string, active bool) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	cur.IsActive = active
	cur.UpdatedAt = m.now().UTC()
	return nil
}

type memLedger struct{ m *MemoryStore }

func (l memLedger) Blacklist(_ context.Context, entry RevocationEntry) error {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.revoked[entry.JTI]; dup {
		return ErrRevoked
	}
	if entry.RevokedAt.IsZero() {
		entry.RevokedAt = m.now().UTC()
	}
	m.revoked[entry.JTI] = entry
	return nil
}

func (l memLedger) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	l.m.mu.RLock()
	defer l.m.mu.RUnlock()
	_, ok := l.m.revoked[jti]
	return ok, nil
}

func (l memLedger) Purge(_ context.Context, before time.Time) (int64, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for jti, e := range m.revoked {
		if e.ExpiresAt.Before(before) {
			delete(m.revoked, jti)
			n++
		}
	}
	return n, nil
}
