// Package app wires configuration into a ready auth.Service for the
// authd binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"authd.io/internal/auth"
	"authd.io/internal/config"
	"authd.io/internal/obs"
)

// ErrDatabaseRequired is returned by OpenDB when no DSN is configured.
var ErrDatabaseRequired = errors.New("database DSN is required: set AUTHD_PG_DSN or -dsn")

// Runtime bundles the service with the resources backing it.
type Runtime struct {
	Service *auth.Service
	DB      *sql.DB       // nil when running on the in-memory store
	PG      *auth.PGStore // nil when running on the in-memory store
	Memory  *auth.MemoryStore
}

// Close releases the database handle, if any.
func (rt *Runtime) Close() error {
	if rt.DB == nil {
		return nil
	}
	return rt.DB.Close()
}

// OpenDB opens and pings the configured PostgreSQL database.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.DatabaseDSN == "" {
		return nil, ErrDatabaseRequired
	}
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Build assembles the service. Without a DSN the in-memory store is used,
// which keeps no state across restarts.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}
	var (
		users  auth.UserStore
		ledger auth.RevocationLedger
	)
	if cfg.DatabaseDSN != "" {
		db, err := OpenDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.DB = db
		rt.PG = auth.NewPGStore(db)
		users, ledger = rt.PG.Users(), rt.PG.Revocations()
	} else {
		obs.Logger().Warn("memory_store", "detail", "no database configured; accounts are lost on restart")
		rt.Memory = auth.NewMemoryStore()
		users, ledger = rt.Memory.Users(), rt.Memory.Revocations()
	}

	svc, err := NewService(cfg, users, ledger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// NewService builds the key ring, hasher and token plumbing from cfg.
func NewService(cfg *config.Config, users auth.UserStore, ledger auth.RevocationLedger) (*auth.Service, error) {
	if cfg.SecretKey == config.DevSecretKey {
		obs.Logger().Warn("insecure_secret", "detail", "using the development signing secret")
	}
	previous, err := auth.ParsePreviousKeys(cfg.PreviousKeys)
	if err != nil {
		return nil, err
	}
	keys, err := auth.NewKeyRing(cfg.KeyID, []byte(cfg.SecretKey), previous)
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokenOpts := []auth.TokenOption{
		auth.WithIssuer(cfg.Issuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	}
	issuer, err := auth.NewIssuer(keys, tokenOpts...)
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier(keys, ledger, tokenOpts...)
	if err != nil {
		return nil, err
	}
	return auth.NewService(auth.Dependencies{
		Users:    users,
		Ledger:   ledger,
		Hasher:   hasher,
		Issuer:   issuer,
		Verifier: verifier,
	}, auth.WithRevokeOnPasswordChange(cfg.RevokeOnPasswordChange))
}
