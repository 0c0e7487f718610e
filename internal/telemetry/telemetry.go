// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for the analytics service.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "trailverse-analytics"

// Enqueue sources.
const (
	SourceMiddleware = "middleware"
	SourceIngest     = "ingest"
)

// Drop reasons.
const (
	DropQueueFull = "queue_full"
	DropInvalid   = "invalid"
	DropBatchCap  = "batch_cap"
	DropBot       = "bot"
	DropStopped   = "stopped"
)

// Metrics holds the write-path and dashboard metrics.
type Metrics struct {
	EventsEnqueued *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	EventsWritten  prometheus.Counter
	WriteFailures  prometheus.Counter
	FlushDuration  prometheus.Histogram
	QueueDepth     prometheus.Gauge

	DashboardDuration *prometheus.HistogramVec
}

// Provider bundles metrics, the registry they live in and a tracer.
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	registry *prometheus.Registry
}

// NewProvider registers all metrics, plus Go runtime and process
// collectors, in a fresh registry.
func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Provider{
		Tracer:   otel.Tracer(tracerName),
		Metrics:  newMetrics(reg),
		registry: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_events_enqueued_total",
			Help: "Events accepted onto the write queue",
		}, []string{"source"}),

		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_events_dropped_total",
			Help: "Events discarded before reaching the store",
		}, []string{"reason"}),

		EventsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "analytics_events_written_total",
			Help: "Events written to the store",
		}),

		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "analytics_write_failures_total",
			Help: "Flushes that failed to write to the store",
		}),

		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "analytics_flush_duration_seconds",
			Help:    "Time to write one batch to the store",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_queue_depth",
			Help: "Events waiting in the write queue",
		}),

		DashboardDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analytics_dashboard_build_seconds",
			Help:    "Time to assemble the admin dashboard",
			Buckets: prometheus.DefBuckets,
		}, []string{"period"}),
	}
}
