package profiling

import (
	"fmt"
	"os"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/trailverse/analytics/infrastructure/logger"
)

// PyroscopeProfiler wraps a running Pyroscope profiler.
type PyroscopeProfiler struct {
	profiler *pyroscope.Profiler
}

// StartPyroscope starts continuous profiling when cfg.Pyroscope is set.
// It returns a nil profiler, and no error, when profiling is disabled.
func StartPyroscope(serviceName, version string, cfg Config, log logger.Logger) (*PyroscopeProfiler, error) {
	if !cfg.Pyroscope {
		return nil, nil //nolint:nilnil // disabled is not an error
	}
	cfg.SetDefaults()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "trailverse." + serviceName,
		ServerAddress:   cfg.ServerURL,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"environment": cfg.Environment,
			"version":     version,
			"hostname":    hostname,
			"go_version":  runtime.Version(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope profiler: %w", err)
	}

	log.Info("Pyroscope continuous profiling started",
		logger.String("server", cfg.ServerURL),
		logger.String("environment", cfg.Environment),
	)

	return &PyroscopeProfiler{profiler: p}, nil
}

// Stop stops the profiler. It is safe on a nil receiver.
func (p *PyroscopeProfiler) Stop() error {
	if p == nil || p.profiler == nil {
		return nil
	}
	return p.profiler.Stop()
}
