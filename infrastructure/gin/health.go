package gin

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trailverse/analytics/infrastructure/monitoring"
)

// HealthStatus represents the status of a health check.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one named dependency check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthChecker performs a health check.
type HealthChecker func() CheckResult

// HealthOptions configures the health endpoints.
type HealthOptions struct {
	ServiceName    string
	ServiceVersion string
	StartTime      time.Time
	Checks         map[string]HealthChecker
}

var healthState = struct {
	sync.Once
	startTime time.Time
}{}

// RegisterHealthRoutesWithChecks adds:
//   - GET /health with dependency checks (503 when any is unhealthy)
//   - HEAD /health for load balancers
//   - GET /health/memory with runtime memory statistics
func RegisterHealthRoutesWithChecks(router *gin.Engine, opts HealthOptions) {
	if opts.StartTime.IsZero() {
		healthState.Do(func() {
			healthState.startTime = time.Now()
		})
		opts.StartTime = healthState.startTime
	}

	router.GET("/health", healthHandler(opts))
	router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health/memory", gin.WrapF(monitoring.MemoryHealthHandler))
}

func healthHandler(opts HealthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:  HealthStatusHealthy,
			Service: opts.ServiceName,
			Version: opts.ServiceVersion,
			Uptime:  formatUptime(time.Since(opts.StartTime)),
		}

		if len(opts.Checks) > 0 {
			response.Checks = make(map[string]CheckResult, len(opts.Checks))
			for name, checker := range opts.Checks {
				result := checker()
				response.Checks[name] = result

				switch {
				case result.Status == HealthStatusUnhealthy:
					response.Status = HealthStatusUnhealthy
				case result.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy:
					response.Status = HealthStatusDegraded
				}
			}
		}

		statusCode := http.StatusOK
		if response.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}

// formatUptime renders d as "1d 2h 3m", "2h 3m", "3m 4s" or "4s".
func formatUptime(d time.Duration) string {
	const hoursPerDay = 24

	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func pingChecker(name string, failStatus HealthStatus, pingFunc func() error) HealthChecker {
	return func() CheckResult {
		start := time.Now()
		err := pingFunc()
		latency := time.Since(start).String()

		if err != nil {
			return CheckResult{
				Status:  failStatus,
				Message: name + " connection failed",
				Latency: latency,
			}
		}

		return CheckResult{
			Status:  HealthStatusHealthy,
			Message: name + " connection OK",
			Latency: latency,
		}
	}
}

// DatabaseHealthChecker reports unhealthy when the database cannot be pinged.
func DatabaseHealthChecker(pingFunc func() error) HealthChecker {
	return pingChecker("Database", HealthStatusUnhealthy, pingFunc)
}

// RedisHealthChecker reports degraded when Redis cannot be pinged; sessions
// fall back to fresh ids so the service keeps serving.
func RedisHealthChecker(pingFunc func() error) HealthChecker {
	return pingChecker("Redis", HealthStatusDegraded, pingFunc)
}
