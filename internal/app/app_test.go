package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authd.io/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.BcryptCost = 4
	return cfg
}

func TestBuildWithoutDSNUsesMemory(t *testing.T) {
	rt, err := Build(context.Background(), testConfig())
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.DB)
	require.NotNil(t, rt.Memory)

	u, err := rt.Service.CreateUser(context.Background(), "Ops@Example.com", "Ops", "Sturdy-Passphrase-9", true)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", u.Email)

	sess, err := rt.Service.Login(context.Background(), "ops@example.com", "Sturdy-Passphrase-9")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Tokens.AccessToken)
}

func TestNewServiceRejectsBadKeys(t *testing.T) {
	cfg := testConfig()
	cfg.PreviousKeys = "missing-separator"
	rt, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, rt)
}

func TestOpenDBRequiresDSN(t *testing.T) {
	_, err := OpenDB(context.Background(), testConfig())
	require.ErrorIs(t, err, ErrDatabaseRequired)
}
