// Package bootstrap handles application initialization and lifecycle management
// for the analytics service.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/infrastructure/profiling"
	"github.com/trailverse/analytics/internal/recorder"
	"github.com/trailverse/analytics/internal/telemetry"
)

// Start initializes and runs the analytics service until it receives a
// shutdown signal.
func Start() error {
	cfg, configErr := LoadConfig()
	if configErr != nil {
		return fmt.Errorf("config: %w", configErr)
	}

	log, logErr := CreateLogger(cfg)
	if logErr != nil {
		return fmt.Errorf("logger: %w", logErr)
	}
	defer func() { _ = log.Sync() }()

	profiling.StartPprofServer(cfg.Profiling, log)
	profiler, profErr := profiling.StartPyroscope(cfg.Service.Name, cfg.Service.Version, cfg.Profiling, log)
	if profErr != nil {
		log.Warn("Continuous profiling disabled", logger.Error(profErr))
	}
	defer func() { _ = profiler.Stop() }()

	log.Info("Starting Analytics Service",
		logger.String("name", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
		logger.String("storage_driver", cfg.Storage.Driver),
	)

	ctx := context.Background()

	stores, storeErr := SetupStorage(ctx, cfg, log)
	if storeErr != nil {
		return fmt.Errorf("storage: %w", storeErr)
	}
	defer stores.Close(log)

	sessions, sessionErr := SetupSessions(ctx, cfg, log)
	if sessionErr != nil {
		return fmt.Errorf("sessions: %w", sessionErr)
	}
	defer sessions.Close(log)

	tel := telemetry.NewProvider()

	queue := recorder.NewQueue(cfg.Recorder.QueueSize, tel.Metrics, log)
	pool := recorder.NewPool(queue, stores.Events, cfg.Recorder, log)
	pool.Start()
	// Drains after the HTTP server has stopped.
	defer pool.Stop()

	done := make(chan struct{})
	defer close(done)

	server := SetupHTTPServer(cfg, Components{
		Stores:    stores,
		Sessions:  sessions,
		Queue:     queue,
		Telemetry: tel,
		Done:      done,
	}, log)

	if runErr := server.RunWithGracefulShutdown(ctx); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return fmt.Errorf("server: %w", runErr)
	}

	log.Info("Analytics Service stopped")
	return nil
}
