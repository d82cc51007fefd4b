package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "jwt", cfg.Auth.Mode)
	assert.Equal(t, 16, cfg.Realtime.SendBuffer)
	assert.Equal(t, 15*time.Minute, cfg.Jobs.ReconcileInterval)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "tickets", cfg.Elasticsearch.Index)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REQUEST_TIMEOUT", "45")
	t.Setenv("RECONCILE_INTERVAL", "90s")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")
	t.Setenv("TIMEZONE", "Asia/Almaty")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 90*time.Second, cfg.Jobs.ReconcileInterval)
	assert.True(t, cfg.NATS.Enabled)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRatio, 1e-9)
	assert.Equal(t, "Asia/Almaty", cfg.Location.String())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queuedesk.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nPORT=7000\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "7100", cfg.Port, "environment wins over the file")
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "x")
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err = Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.ErrorContains(t, err, "TIMEZONE")
}
