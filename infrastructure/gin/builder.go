package gin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trailverse/analytics/infrastructure/logger"
)

// ServerBuilder provides a fluent API for building HTTP servers.
type ServerBuilder struct {
	config         *Config
	logger         logger.Logger
	setupRoutes    func(*gin.Engine)
	healthChecks   map[string]HealthChecker
	metricsHandler http.Handler
	middleware     []gin.HandlerFunc
}

// NewServerBuilder creates a new server builder with the given configuration.
func NewServerBuilder(serviceName string, port int) *ServerBuilder {
	return &ServerBuilder{
		config:       NewConfig(serviceName, port),
		healthChecks: make(map[string]HealthChecker),
	}
}

// WithLogger sets the logger.
func (b *ServerBuilder) WithLogger(log logger.Logger) *ServerBuilder {
	b.logger = log
	return b
}

// WithDebug enables or disables debug mode.
func (b *ServerBuilder) WithDebug(debug bool) *ServerBuilder {
	b.config.Debug = debug
	return b
}

// WithVersion sets the service version.
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.config.ServiceVersion = version
	return b
}

// WithCORSOrigins sets allowed CORS origins. Credentials are allowed so the
// session cookie survives cross-origin tracking calls.
func (b *ServerBuilder) WithCORSOrigins(origins []string) *ServerBuilder {
	b.config.CORS.AllowedOrigins = origins
	b.config.CORS.AllowCredentials = true
	return b
}

// WithTimeouts sets all timeout values for the HTTP server.
func (b *ServerBuilder) WithTimeouts(read, write, idle time.Duration) *ServerBuilder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	b.config.IdleTimeout = idle
	return b
}

// WithShutdownTimeout sets how long in-flight requests get on shutdown.
func (b *ServerBuilder) WithShutdownTimeout(d time.Duration) *ServerBuilder {
	b.config.ShutdownTimeout = d
	return b
}

// WithHealthCheck adds a named health check.
func (b *ServerBuilder) WithHealthCheck(name string, checker HealthChecker) *ServerBuilder {
	b.healthChecks[name] = checker
	return b
}

// WithDatabaseHealthCheck adds a database health check.
func (b *ServerBuilder) WithDatabaseHealthCheck(pingFunc func() error) *ServerBuilder {
	b.healthChecks["database"] = DatabaseHealthChecker(pingFunc)
	return b
}

// WithRedisHealthCheck adds a Redis health check.
func (b *ServerBuilder) WithRedisHealthCheck(pingFunc func() error) *ServerBuilder {
	b.healthChecks["redis"] = RedisHealthChecker(pingFunc)
	return b
}

// WithMetrics exposes h at GET /metrics.
func (b *ServerBuilder) WithMetrics(h http.Handler) *ServerBuilder {
	b.metricsHandler = h
	return b
}

// WithMiddleware appends global middleware that runs after the standard
// recovery, request id, logging and CORS chain.
func (b *ServerBuilder) WithMiddleware(mw ...gin.HandlerFunc) *ServerBuilder {
	b.middleware = append(b.middleware, mw...)
	return b
}

// WithRoutes sets the route setup function.
func (b *ServerBuilder) WithRoutes(setupRoutes func(*gin.Engine)) *ServerBuilder {
	b.setupRoutes = setupRoutes
	return b
}

// Build creates the server with all configured options.
func (b *ServerBuilder) Build() *Server {
	if b.logger == nil {
		b.logger = logger.Must(logger.Config{
			Level:       "info",
			Development: b.config.Debug,
		})
	}

	wrappedSetup := func(router *gin.Engine) {
		if len(b.middleware) > 0 {
			router.Use(b.middleware...)
		}

		RegisterHealthRoutesWithChecks(router, HealthOptions{
			ServiceName:    b.config.ServiceName,
			ServiceVersion: b.config.ServiceVersion,
			Checks:         b.healthChecks,
		})

		if b.metricsHandler != nil {
			router.GET("/metrics", gin.WrapH(b.metricsHandler))
		}

		if b.setupRoutes != nil {
			b.setupRoutes(router)
		}
	}

	return NewServer(b.config, b.logger, wrappedSetup)
}

// APIGroup creates a router group under prefix guarded by mw.
func APIGroup(router gin.IRouter, prefix string, mw ...gin.HandlerFunc) *gin.RouterGroup {
	group := router.Group(prefix)
	if len(mw) > 0 {
		group.Use(mw...)
	}
	return group
}
