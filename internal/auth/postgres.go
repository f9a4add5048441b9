package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"authd.io/internal/ids"
)

const pgUniqueViolation = "23505"

// PGStore persists users and revocations in PostgreSQL.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, now: time.Now}
}

func (s *PGStore) Users() UserStore              { return &userStore{db: s.db, now: s.now} }
func (s *PGStore) Revocations() RevocationLedger { return &ledgerStore{db: s.db} }

// Ping reports whether the database is reachable.
func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// User store ---------------------------------------------------------------
type userStore struct {
	db  *sql.DB
	now func() time.Time
}

const userColumns = `id, email, password_hash, full_name, is_active, is_staff,
	created_at, updated_at, last_login, password_changed_at, token_version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u         User
		lastLogin sql.NullTime
		changedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.IsActive, &u.IsStaff,
		&u.CreatedAt, &u.UpdatedAt, &lastLogin, &changedAt, &u.TokenVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	if changedAt.Valid {
		u.PasswordChangedAt = &changedAt.Time
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = NormalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	u.UpdatedAt = u.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, full_name, is_active, is_staff, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.IsActive, u.IsStaff, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=$1`, NormalizeEmail(email))
	return scanUser(row)
}

func (s *userStore) Update(ctx context.Context, u *User) error {
	u.Email = NormalizeEmail(u.Email)
	u.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`update users set email=$2, full_name=$3, updated_at=$4 where id=$1`,
		u.ID, u.Email, u.FullName, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return expectOne(res, err)
}

func (s *userStore) UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, password_changed_at=$3, updated_at=$3,
		 token_version=token_version+1 where id=$1`,
		userID, passwordHash, changedAt,
	)
	return expectOne(res, err)
}

func (s *userStore) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `update users set last_login=$2 where id=$1`, userID, at)
	return expectOne(res, err)
}

func (s *userStore) SetActive(ctx context.Context, userID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set is_active=$2, updated_at=$3 where id=$1`, userID, active, s.now().UTC())
	return expectOne(res, err)
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Revocation ledger --------------------------------------------------------
type ledgerStore struct{ db *sql.DB }

func (s *ledgerStore) Blacklist(ctx context.Context, e RevocationEntry) error {
	res, err := s.db.ExecContext(ctx,
		`insert into revoked_tokens(jti, user_id, reason, expires_at, revoked_at)
		 values($1,$2,$3,$4,$5) on conflict (jti) do nothing`,
		e.JTI, e.UserID, e.Reason, e.ExpiresAt, e.RevokedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRevoked
	}
	return nil
}

func (s *ledgerStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from revoked_tokens where jti=$1)`, jti).Scan(&exists)
	return exists, err
}

func (s *ledgerStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from revoked_tokens where expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
