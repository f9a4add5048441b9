// Package migrate applies the embedded PostgreSQL schema with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrations embed.FS

const migrationsDir = "sql"

// Seams for tests; production code uses goose directly.
var (
	gooseUp      = goose.UpContext
	gooseDown    = goose.DownContext
	gooseVersion = goose.GetDBVersionContext
	gooseCollect = goose.CollectMigrations
)

var setupOnce sync.Once
var setupErr error

func setup() error {
	setupOnce.Do(func() {
		goose.SetBaseFS(migrations)
		setupErr = goose.SetDialect("postgres")
	})
	return setupErr
}

// Manager runs schema migrations against one database.
type Manager struct {
	db *sql.DB
}

// Applied describes one known migration and whether the database has it.
type Applied struct {
	Version int64
	Name    string
	Applied bool
}

// NewManager constructs a Manager.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	if err := setup(); err != nil {
		return err
	}
	if err := gooseUp(ctx, m.db, migrationsDir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := setup(); err != nil {
		return err
	}
	if err := gooseDown(ctx, m.db, migrationsDir); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version reports the current schema version.
func (m *Manager) Version(ctx context.Context) (int64, error) {
	if err := setup(); err != nil {
		return 0, err
	}
	return gooseVersion(ctx, m.db)
}

// Status lists the embedded migrations in order with their applied state.
func (m *Manager) Status(ctx context.Context) ([]Applied, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	all, err := gooseCollect(migrationsDir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	out := make([]Applied, 0, len(all))
	for _, mig := range all {
		out = append(out, Applied{
			Version: mig.Version,
			Name:    filepath.Base(mig.Source),
			Applied: mig.Version <= current,
		})
	}
	return out, nil
}
