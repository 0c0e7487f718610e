package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	infragin "github.com/trailverse/analytics/infrastructure/gin"
	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/analytics"
	"github.com/trailverse/analytics/internal/auth"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
)

// DashboardBuilder builds the admin dashboard.
type DashboardBuilder interface {
	Build(ctx context.Context, period domain.Period) (*analytics.DashboardPayload, error)
}

// ReportBuilder builds the enriched reports.
type ReportBuilder interface {
	Users(ctx context.Context, w domain.Window, page, limit int) (analytics.UsersReport, error)
	Content(ctx context.Context, w domain.Window, contentType string) (analytics.ContentReport, error)
}

// Aggregator runs the plain aggregations.
type Aggregator interface {
	SearchAnalytics(ctx context.Context, w domain.Window, limit int) ([]storage.SearchTerm, error)
	ErrorAnalytics(ctx context.Context, w domain.Window, limit int) ([]storage.ErrorGroup, error)
	PerformanceStats(ctx context.Context, w domain.Window) (analytics.Performance, error)
}

// AnalyticsHandler serves the admin analytics endpoints.
type AnalyticsHandler struct {
	dashboard DashboardBuilder
	reports   ReportBuilder
	engine    Aggregator
	log       logger.Logger
	now       analytics.Clock
}

// NewAnalyticsHandler creates an AnalyticsHandler. A nil clock means
// time.Now.
func NewAnalyticsHandler(
	dashboard DashboardBuilder,
	reports ReportBuilder,
	engine Aggregator,
	log logger.Logger,
	clock analytics.Clock,
) *AnalyticsHandler {
	if clock == nil {
		clock = time.Now
	}
	return &AnalyticsHandler{
		dashboard: dashboard,
		reports:   reports,
		engine:    engine,
		log:       log,
		now:       clock,
	}
}

// GetDashboard handles GET /api/analytics/dashboard.
func (h *AnalyticsHandler) GetDashboard(c *gin.Context, claims *auth.Claims) {
	period, ok := h.period(c)
	if !ok {
		return
	}

	payload, err := h.dashboard.Build(c.Request.Context(), period)
	if err != nil {
		h.fail(c, claims, "dashboard", err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// GetUsers handles GET /api/analytics/users.
func (h *AnalyticsHandler) GetUsers(c *gin.Context, claims *auth.Claims) {
	period, ok := h.period(c)
	if !ok {
		return
	}
	page, ok := intQuery(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", analytics.DefaultPageSize)
	if !ok {
		return
	}

	window := period.Window(h.now())
	report, err := h.reports.Users(c.Request.Context(), window, page, limit)
	if err != nil {
		h.fail(c, claims, "users", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":     period,
		"dateRange":  window,
		"users":      report.Users,
		"pagination": report.Pagination,
	})
}

// GetContent handles GET /api/analytics/content.
func (h *AnalyticsHandler) GetContent(c *gin.Context, claims *auth.Claims) {
	period, ok := h.period(c)
	if !ok {
		return
	}
	contentType := c.DefaultQuery("contentType", analytics.ContentTypeAll)

	window := period.Window(h.now())
	report, err := h.reports.Content(c.Request.Context(), window, contentType)
	if err != nil {
		h.fail(c, claims, "content", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":      period,
		"dateRange":   window,
		"contentType": contentType,
		"content":     report,
	})
}

// GetSearch handles GET /api/analytics/search.
func (h *AnalyticsHandler) GetSearch(c *gin.Context, claims *auth.Claims) {
	period, ok := h.period(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", analytics.DefaultSearchLimit)
	if !ok {
		return
	}

	window := period.Window(h.now())
	terms, err := h.engine.SearchAnalytics(c.Request.Context(), window, limit)
	if err != nil {
		h.fail(c, claims, "search", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period": period, "dateRange": window, "searches": terms})
}

// GetErrors handles GET /api/analytics/errors.
func (h *AnalyticsHandler) GetErrors(c *gin.Context, claims *auth.Claims) {
	period, ok := h.period(c)
	if !ok {
		return
	}

	window := period.Window(h.now())
	groups, err := h.engine.ErrorAnalytics(c.Request.Context(), window, analytics.DefaultErrorLimit)
	if err != nil {
		h.fail(c, claims, "errors", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period": period, "dateRange": window, "errors": groups})
}

// GetPerformance handles GET /api/analytics/performance.
func (h *AnalyticsHandler) GetPerformance(c *gin.Context, claims *auth.Claims) {
	period, ok := h.period(c)
	if !ok {
		return
	}

	window := period.Window(h.now())
	perf, err := h.engine.PerformanceStats(c.Request.Context(), window)
	if err != nil {
		h.fail(c, claims, "performance", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period": period, "dateRange": window, "performance": perf})
}

func (h *AnalyticsHandler) period(c *gin.Context) (domain.Period, bool) {
	period, err := domain.ParsePeriod(c.Query("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return period, true
}

// fail writes 400 for caller errors and a generic 500 otherwise.
func (h *AnalyticsHandler) fail(c *gin.Context, claims *auth.Claims, report string, err error) {
	if analytics.IsBadRequest(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.log.Error("Analytics report failed",
		logger.String("report", report),
		logger.String("admin", claims.Sub),
		logger.String("request_id", c.GetString(infragin.RequestIDKey)),
		logger.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build " + report + " report"})
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a positive integer"})
		return 0, false
	}
	return n, true
}
