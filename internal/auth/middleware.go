package auth

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trailverse/analytics/infrastructure/logger"
)

const claimsKey = "auth_claims"

// Authenticate reads an optional bearer token. Valid claims are stored on
// the context; a missing or invalid token leaves the request anonymous.
// Rejecting anonymous callers is left to the handlers that need it.
func Authenticate(secret string) gin.HandlerFunc {
	issuer := &Issuer{secret: []byte(secret), now: time.Now}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || secret == "" {
			c.Next()
			return
		}

		claims, err := issuer.Validate(token)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("Ignoring invalid bearer token",
				logger.Error(err),
			)
			c.Next()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims Authenticate stored on c.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok && claims != nil
}

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	if claims, ok := ClaimsFrom(c); ok {
		return claims.Sub
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
