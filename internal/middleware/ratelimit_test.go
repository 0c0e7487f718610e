package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/trailverse/analytics/internal/middleware"
)

const testBurst = 3

func init() {
	gin.SetMode(gin.TestMode)
}

func newLimitedRouter(t *testing.T) *gin.Engine {
	t.Helper()

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	r := gin.New()
	// One request per minute refills far slower than the test runs.
	r.Use(middleware.RateLimiter(1, testBurst, done))
	r.POST("/track", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func post(r *gin.Engine, remoteAddr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/track", http.NoBody)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_AllowsBurst(t *testing.T) {
	t.Parallel()

	r := newLimitedRouter(t)
	for i := range testBurst {
		assert.Equal(t, http.StatusOK, post(r, "1.2.3.4:1234"), "request %d", i)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	t.Parallel()

	r := newLimitedRouter(t)
	for range testBurst {
		post(r, "1.2.3.4:1234")
	}

	assert.Equal(t, http.StatusTooManyRequests, post(r, "1.2.3.4:1234"))
}

func TestRateLimiter_PerIP(t *testing.T) {
	t.Parallel()

	r := newLimitedRouter(t)
	for range testBurst {
		post(r, "1.2.3.4:1234")
	}

	assert.Equal(t, http.StatusTooManyRequests, post(r, "1.2.3.4:1234"))
	assert.Equal(t, http.StatusOK, post(r, "5.6.7.8:1234"))
}
