// Package api provides the HTTP surface of the analytics service.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trailverse/analytics/internal/auth"
)

// AdminHandlerFunc is a handler that has been granted admin claims.
type AdminHandlerFunc func(c *gin.Context, claims *auth.Claims)

// AdminOnly runs h only for callers whose claims carry the admin role.
// It expects auth.Authenticate earlier in the chain.
func AdminOnly(h AdminHandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		h(c, claims)
	}
}
