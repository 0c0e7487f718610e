package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraconfig "github.com/trailverse/analytics/infrastructure/config"
	"github.com/trailverse/analytics/internal/config"
	"github.com/trailverse/analytics/internal/recorder"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: s3cret\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "analytics", cfg.Service.Name)
	assert.Equal(t, 8095, cfg.Service.Port)
	assert.Equal(t, config.DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, recorder.DefaultQueueSize, cfg.Recorder.QueueSize)
	assert.Equal(t, recorder.DefaultWorkers, cfg.Recorder.Workers)
	assert.Equal(t, 5*time.Second, cfg.Recorder.FlushTimeout)
	assert.False(t, cfg.Recorder.SkipBots)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "pa_sid", cfg.Session.CookieName)
	assert.Equal(t, 100, cfg.Ingest.MaxBatchSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.UsesRedisSessions())

	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `
service:
  port: 9100
recorder:
  workers: 8
  flush_interval: 250ms
  skip_bots: true
redis:
  address: redis:6379
storage:
  driver: postgres
`)
	t.Setenv("ANALYTICS_STORAGE_DRIVER", "memory")
	t.Setenv("AUTH_JWT_SECRET", "from-env")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Service.Port)
	assert.Equal(t, 8, cfg.Recorder.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Recorder.FlushInterval)
	assert.True(t, cfg.Recorder.SkipBots)
	assert.True(t, cfg.UsesRedisSessions())
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: mongo\nlogging:\n  level: loud\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)

	var verr *infraconfig.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "auth.jwt_secret")
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "logging.level")
}
