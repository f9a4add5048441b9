package migrate

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := fs.Glob(migrations, "sql/*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sql/00001_users.sql",
		"sql/00002_revoked_tokens.sql",
		"sql/00003_token_version.sql",
	}, names)

	body, err := fs.ReadFile(migrations, "sql/00002_revoked_tokens.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- +goose Down")
}

func TestUpUsesEmbeddedDir(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, NewManager(nil).Up(context.Background()))
	assert.Equal(t, "sql", gotDir)
}

func TestDownWrapsError(t *testing.T) {
	orig := gooseDown
	defer func() { gooseDown = orig }()

	boom := errors.New("boom")
	gooseDown = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return boom
	}
	err := NewManager(nil).Down(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "migrate down")
}

func TestStatusMarksApplied(t *testing.T) {
	origVersion, origCollect := gooseVersion, gooseCollect
	defer func() { gooseVersion, gooseCollect = origVersion, origCollect }()

	gooseVersion = func(ctx context.Context, db *sql.DB) (int64, error) { return 1, nil }
	gooseCollect = func(dir string, current, target int64) (goose.Migrations, error) {
		return goose.Migrations{
			{Version: 1, Source: "sql/00001_users.sql"},
			{Version: 2, Source: "sql/00002_revoked_tokens.sql"},
		}, nil
	}

	status, err := NewManager(nil).Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, Applied{Version: 1, Name: "00001_users.sql", Applied: true}, status[0])
	assert.Equal(t, Applied{Version: 2, Name: "00002_revoked_tokens.sql", Applied: false}, status[1])
}

func TestStatusVersionError(t *testing.T) {
	orig := gooseVersion
	defer func() { gooseVersion = orig }()

	gooseVersion = func(ctx context.Context, db *sql.DB) (int64, error) { return 0, errors.New("no db") }
	_, err := NewManager(nil).Status(context.Background())
	require.Error(t, err)
}
