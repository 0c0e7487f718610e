package recorder_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/auth"
	"github.com/trailverse/analytics/internal/device"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/recorder"
	"github.com/trailverse/analytics/internal/session"
	"github.com/trailverse/analytics/internal/storage"
	"github.com/trailverse/analytics/internal/telemetry"
)

const (
	testSecret = "recorder-test-secret"
	ipadUA     = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	router  *gin.Engine
	store   *storage.MemoryStore
	pool    *recorder.Pool
	metrics *telemetry.Metrics
}

func newHarness(cfg recorder.Config) *harness {
	log := logger.NewNop()
	store := storage.NewMemoryStore()
	metrics := telemetry.NewProvider().Metrics
	queue := recorder.NewQueue(100, metrics, log)
	pool := recorder.NewPool(queue, store, recorder.Config{Workers: 1, FlushInterval: time.Hour}, log)
	pool.Start()

	ids := session.NewIdentifier(session.NewMemoryStore(), session.Config{}, log)
	rec := recorder.New(queue, ids, device.NewDefault(), cfg, log)

	router := gin.New()
	api := router.Group("/api", auth.Authenticate(testSecret), rec.TrackAPICalls())
	api.GET("/parks/:parkCode", rec.Track(domain.KindParkView), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"parkCode": c.Param("parkCode")})
	})
	api.GET("/blogs/:id", rec.Track(domain.KindBlogView), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	api.GET("/broken", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	return &harness{router: router, store: store, pool: pool, metrics: metrics}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func byKind(events []domain.Event, kind domain.Kind) []domain.Event {
	var out []domain.Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestRecorder_ParkViewAndAPICall(t *testing.T) {
	t.Parallel()

	h := newHarness(recorder.Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/parks/yose?tab=hikes", http.NoBody)
	req.Header.Set("User-Agent", ipadUA)
	req.Header.Set("Referer", "https://parks.example/search")
	w := h.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	h.pool.Stop()
	events := h.store.Events()
	require.Len(t, events, 2)

	views := byKind(events, domain.KindParkView)
	calls := byKind(events, domain.KindAPICall)
	require.Len(t, views, 1)
	require.Len(t, calls, 1)

	view, call := views[0], calls[0]
	assert.Equal(t, "yose", view.Content.ParkCode)
	assert.Equal(t, "yose", call.Content.ParkCode)
	assert.Equal(t, domain.CategoryEngagement, view.Category)
	assert.Equal(t, domain.CategoryTechnical, call.Category)
	assert.True(t, call.Anonymous())

	assert.NotEmpty(t, view.SessionID)
	assert.Equal(t, view.SessionID, call.SessionID)

	payload, ok := call.Payload.(domain.APICallPayload)
	require.True(t, ok)
	assert.Equal(t, "/api/parks/:parkCode", payload.Endpoint)
	assert.Equal(t, http.MethodGet, payload.Method)
	assert.Equal(t, http.StatusOK, payload.StatusCode)
	require.NotNil(t, call.Timing.ResponseTimeMs)

	assert.Equal(t, device.TypeTablet, call.Context.Device.Type)
	assert.Equal(t, "Safari", call.Context.Browser.Name)
	assert.Equal(t, ipadUA, call.Context.UserAgent)
	assert.Equal(t, "https://parks.example/search", call.Context.Referrer)
	assert.Equal(t, "/api/parks/yose?tab=hikes", call.Context.PageURL)

	var cookieSet bool
	for _, ck := range w.Result().Cookies() {
		if ck.Name == session.DefaultCookieName {
			cookieSet = true
		}
	}
	assert.True(t, cookieSet, "session cookie should be set on the response")
}

func TestRecorder_AuthenticatedUserAndBlogRef(t *testing.T) {
	t.Parallel()

	h := newHarness(recorder.Config{})
	issuer, err := auth.NewIssuer(testSecret)
	require.NoError(t, err)
	token, err := issuer.Issue("user-7", "user", "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/blogs/42", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	h.do(req)

	h.pool.Stop()
	views := byKind(h.store.Events(), domain.KindBlogView)
	require.Len(t, views, 1)
	assert.Equal(t, "user-7", views[0].UserID)
	assert.Equal(t, "42", views[0].Content.BlogID)
}

func TestRecorder_RecordsServerErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(recorder.Config{})
	h.do(httptest.NewRequest(http.MethodGet, "/api/broken", http.NoBody))

	h.pool.Stop()
	calls := byKind(h.store.Events(), domain.KindAPICall)
	require.Len(t, calls, 1)
	payload, ok := calls[0].Payload.(domain.APICallPayload)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, payload.StatusCode)
}

func TestRecorder_SkipBots(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		skipBots   bool
		wantEvents int
	}{
		{"bots recorded by default", false, 1},
		{"bots skipped when configured", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(recorder.Config{SkipBots: tt.skipBots})
			req := httptest.NewRequest(http.MethodGet, "/api/broken", http.NoBody)
			req.Header.Set("User-Agent", "Googlebot/2.1 (+http://www.google.com/bot.html)")
			h.do(req)

			h.pool.Stop()
			assert.Equal(t, tt.wantEvents, h.store.Len())
			if tt.skipBots {
				assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.EventsDropped.WithLabelValues(telemetry.DropBot)), 0)
			}
		})
	}
}
