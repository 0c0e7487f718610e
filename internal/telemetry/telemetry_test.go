package telemetry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailverse/analytics/internal/telemetry"
)

func TestProvider_IndependentRegistries(t *testing.T) {
	t.Parallel()

	a := telemetry.NewProvider()
	b := telemetry.NewProvider()

	a.Metrics.EventsDropped.WithLabelValues(telemetry.DropQueueFull).Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(a.Metrics.EventsDropped.WithLabelValues(telemetry.DropQueueFull)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.Metrics.EventsDropped.WithLabelValues(telemetry.DropQueueFull)), 0)
}

func TestProvider_HandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	p := telemetry.NewProvider()
	p.Metrics.EventsEnqueued.WithLabelValues(telemetry.SourceIngest).Add(3)
	p.Metrics.QueueDepth.Set(2)

	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `analytics_events_enqueued_total{source="ingest"} 3`)
	assert.Contains(t, string(body), "analytics_queue_depth 2")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestProvider_HasTracer(t *testing.T) {
	t.Parallel()

	p := telemetry.NewProvider()
	_, span := p.Tracer.Start(t.Context(), "test")
	span.End()
}
