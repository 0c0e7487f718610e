package api

import (
	"github.com/gin-gonic/gin"

	infragin "github.com/trailverse/analytics/infrastructure/gin"
	"github.com/trailverse/analytics/internal/auth"
)

// RouteDeps carries everything SetupRoutes wires.
type RouteDeps struct {
	JWTSecret string
	// Track serves the public batch ingestion endpoint.
	Track gin.HandlerFunc
	// RateLimit guards Track.
	RateLimit gin.HandlerFunc
	// TrackAPICalls records api_call events for the admin endpoints.
	TrackAPICalls gin.HandlerFunc
	Analytics     *AnalyticsHandler
}

// SetupRoutes configures all API routes.
// Health and metrics routes are registered by the infrastructure gin builder.
func SetupRoutes(router gin.IRouter, deps RouteDeps) {
	group := infragin.APIGroup(router, "/api/analytics", auth.Authenticate(deps.JWTSecret))

	// Ingest (write path): public, rate limited, not itself recorded.
	track := make([]gin.HandlerFunc, 0, 2)
	if deps.RateLimit != nil {
		track = append(track, deps.RateLimit)
	}
	group.POST("/track", append(track, deps.Track)...)

	// Reports (read path): admin only.
	admin := group.Group("")
	if deps.TrackAPICalls != nil {
		admin.Use(deps.TrackAPICalls)
	}
	h := deps.Analytics
	admin.GET("/dashboard", AdminOnly(h.GetDashboard))
	admin.GET("/users", AdminOnly(h.GetUsers))
	admin.GET("/content", AdminOnly(h.GetContent))
	admin.GET("/search", AdminOnly(h.GetSearch))
	admin.GET("/errors", AdminOnly(h.GetErrors))
	admin.GET("/performance", AdminOnly(h.GetPerformance))
}
