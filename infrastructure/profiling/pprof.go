// Package profiling starts optional pprof and Pyroscope profilers.
package profiling

import (
	"errors"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // bound to localhost only
	"time"

	"github.com/trailverse/analytics/infrastructure/logger"
)

// Config controls both profilers. Everything is off by default.
type Config struct {
	PprofEnabled bool   `env:"ENABLE_PROFILING"            yaml:"pprof_enabled"`
	PprofPort    string `env:"PPROF_PORT"                  yaml:"pprof_port"`
	Pyroscope    bool   `env:"ENABLE_CONTINUOUS_PROFILING" yaml:"pyroscope_enabled"`
	ServerURL    string `env:"PYROSCOPE_SERVER_URL"        yaml:"pyroscope_server_url"`
	Environment  string `env:"PYROSCOPE_ENVIRONMENT"       yaml:"environment"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.PprofPort == "" {
		c.PprofPort = "6060"
	}
	if c.ServerURL == "" {
		c.ServerURL = "http://pyroscope:4040"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// StartPprofServer serves /debug/pprof on localhost when enabled.
func StartPprofServer(cfg Config, log logger.Logger) {
	if !cfg.PprofEnabled {
		return
	}
	cfg.SetDefaults()

	addr := "localhost:" + cfg.PprofPort
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Starting pprof server", logger.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("pprof server error", logger.Error(err))
		}
	}()
}
