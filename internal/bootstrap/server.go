package bootstrap

import (
	"time"

	"github.com/gin-gonic/gin"

	infragin "github.com/trailverse/analytics/infrastructure/gin"
	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/analytics"
	"github.com/trailverse/analytics/internal/api"
	"github.com/trailverse/analytics/internal/config"
	"github.com/trailverse/analytics/internal/device"
	"github.com/trailverse/analytics/internal/ingest"
	"github.com/trailverse/analytics/internal/middleware"
	"github.com/trailverse/analytics/internal/recorder"
	"github.com/trailverse/analytics/internal/session"
	"github.com/trailverse/analytics/internal/telemetry"
)

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	healthCheckTimeout     = 2 * time.Second
)

// Components are the long-lived pieces SetupHTTPServer wires into handlers.
type Components struct {
	Stores    *Stores
	Sessions  *Sessions
	Queue     *recorder.Queue
	Telemetry *telemetry.Provider
	// Done stops background goroutines owned by middleware.
	Done <-chan struct{}
}

// SetupHTTPServer creates the HTTP server with all handlers wired.
func SetupHTTPServer(cfg *config.Config, deps Components, log logger.Logger) *infragin.Server {
	classifier := device.NewDefault()
	identifier := session.NewIdentifier(deps.Sessions.Store, cfg.Session, log)

	rec := recorder.New(deps.Queue, identifier, classifier, cfg.Recorder, log)

	ingestSvc := ingest.NewService(deps.Queue, classifier, cfg.Ingest, log)
	ingestHandler := ingest.NewHandler(ingestSvc, identifier, log)

	engine := analytics.NewEngine(deps.Stores.Events)
	reports := analytics.NewReports(engine, deps.Stores.Users, deps.Stores.Blogs, log)
	dashboard := analytics.NewDashboard(engine, deps.Stores.Users, deps.Telemetry, log, nil)
	analyticsHandler := api.NewAnalyticsHandler(dashboard, reports, engine, log, nil)

	builder := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithTimeouts(defaultReadTimeout, defaultWriteTimeout, defaultIdleTimeout).
		WithShutdownTimeout(defaultShutdownTimeout).
		WithMetrics(deps.Telemetry.Handler())

	if ping := deps.Stores.Ping(); ping != nil {
		builder = builder.WithDatabaseHealthCheck(ping)
	}
	if ping := deps.Sessions.Ping(); ping != nil {
		builder = builder.WithRedisHealthCheck(ping)
	}

	return builder.
		WithRoutes(func(router *gin.Engine) {
			api.SetupRoutes(router, api.RouteDeps{
				JWTSecret:     cfg.Auth.JWTSecret,
				Track:         ingestHandler.Track,
				RateLimit:     middleware.RateLimiter(cfg.Ingest.RateLimitPerMinute, cfg.Ingest.RateLimitBurst, deps.Done),
				TrackAPICalls: rec.TrackAPICalls(),
				Analytics:     analyticsHandler,
			})
		}).
		Build()
}
