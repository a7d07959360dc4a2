package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets keys for the test; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"APP_PORT", "APP_ENV", "STORAGE_DRIVER", "DATABASE_URL", "JWT_SECRET",
		"RECEIPT_MAX_ATTEMPTS", "IDEMPOTENCY_TTL", "IDEMPOTENCY_ENABLED",
		"PO_NUMBERING_STRATEGY", "PO_NUMBERING_RANGE",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Receiving.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.True(t, cfg.Idempotency.Enabled)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, "strict", cfg.Purchasing.NumberingStrategy)
	assert.Equal(t, int64(50), cfg.Purchasing.NumberingRange)
}

func TestLoad_PostgresFromDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/stockflow")
	t.Setenv("RECEIPT_MAX_ATTEMPTS", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.Receiving.MaxAttempts)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=9090\nIDEMPOTENCY_TTL=2h\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Idempotency.TTL)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	t.Run("production requires secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("postgres requires url", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", DriverPostgres)
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("unknown numbering strategy", func(t *testing.T) {
		t.Setenv("PO_NUMBERING_STRATEGY", "random")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "PO_NUMBERING_STRATEGY")
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "mongo")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "STORAGE_DRIVER")
	})
}
