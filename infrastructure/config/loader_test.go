package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailverse/analytics/infrastructure/config"
)

type testConfig struct {
	Service struct {
		Port  int           `env:"TEST_LOADER_PORT" yaml:"port"`
		Debug bool          `env:"TEST_LOADER_DEBUG" yaml:"debug"`
		Flush time.Duration `env:"TEST_LOADER_FLUSH" yaml:"flush"`
	} `yaml:"service"`
	Origins []string `env:"TEST_LOADER_ORIGINS" yaml:"origins"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ReadsYAML(t *testing.T) {
	path := writeConfig(t, "service:\n  port: 9000\n  flush: 2s\n")

	cfg, err := config.Load[testConfig](path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, 2*time.Second, cfg.Service.Flush)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "service:\n  port: 9000\n")
	t.Setenv("TEST_LOADER_PORT", "9100")
	t.Setenv("TEST_LOADER_DEBUG", "yes")
	t.Setenv("TEST_LOADER_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load[testConfig](path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Service.Port)
	assert.True(t, cfg.Service.Debug)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins)
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("TEST_LOADER_FLUSH", "750ms")

	cfg, err := config.Load[testConfig](filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Service.Flush)
}

func TestLoadWithDefaults_EnvWinsOverDefaults(t *testing.T) {
	path := writeConfig(t, "origins: []\n")
	t.Setenv("TEST_LOADER_PORT", "7000")

	cfg, err := config.LoadWithDefaults(path, func(c *testConfig) {
		c.Service.Port = 8080
	})
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Service.Port)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yml", config.GetConfigPath("config.yml"))

	t.Setenv("CONFIG_PATH", "/etc/analytics/config.yml")
	assert.Equal(t, "/etc/analytics/config.yml", config.GetConfigPath("config.yml"))
}
