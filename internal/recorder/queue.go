// Package recorder moves analytics events off the request path. Producers
// enqueue onto a bounded Queue without blocking; a Pool of workers drains
// it in batches into the event store.
package recorder

import (
	"sync"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/telemetry"
)

// Queue is a bounded, channel-based event buffer. When it is full the
// newest event is dropped.
type Queue struct {
	events chan domain.Event
	closed chan struct{}
	once   sync.Once
	// mu orders sends before Close: once closed is signalled no send is
	// in flight, so a final drain sees every accepted event.
	mu      sync.RWMutex
	stopped bool
	metrics *telemetry.Metrics
	log     logger.Logger
}

// NewQueue creates a queue holding at most capacity events.
func NewQueue(capacity int, metrics *telemetry.Metrics, log logger.Logger) *Queue {
	return &Queue{
		events:  make(chan domain.Event, capacity),
		closed:  make(chan struct{}),
		metrics: metrics,
		log:     log,
	}
}

// Enqueue performs a non-blocking send. It returns false when the event
// was dropped because the queue is full or closed.
func (q *Queue) Enqueue(source string, event domain.Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		q.Discard(telemetry.DropStopped)
		return false
	}

	select {
	case q.events <- event:
		q.metrics.EventsEnqueued.WithLabelValues(source).Inc()
		q.metrics.QueueDepth.Set(float64(len(q.events)))
		return true
	default:
		q.Discard(telemetry.DropQueueFull)
		q.log.Warn("Analytics queue full, dropping event",
			logger.String("source", source),
			logger.String("event_kind", string(event.Kind)),
			logger.Int("capacity", cap(q.events)),
		)
		return false
	}
}

// Discard counts an event that never reached the queue.
func (q *Queue) Discard(reason string) {
	q.metrics.EventsDropped.WithLabelValues(reason).Inc()
}

// Len returns the number of events waiting in the queue.
func (q *Queue) Len() int {
	return len(q.events)
}

// Close stops the queue accepting events. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.stopped = true
		close(q.closed)
		q.mu.Unlock()
	})
}
