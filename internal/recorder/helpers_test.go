package recorder_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/recorder"
	"github.com/trailverse/analytics/internal/telemetry"
)

// fakeWriter records every batch it is given.
type fakeWriter struct {
	mu      sync.Mutex
	batches [][]domain.Event
	writeFn func(events []domain.Event) error
}

func (w *fakeWriter) WriteEvents(_ context.Context, events []domain.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writeFn != nil {
		if err := w.writeFn(events); err != nil {
			return err
		}
	}
	w.batches = append(w.batches, append([]domain.Event(nil), events...))
	return nil
}

func (w *fakeWriter) written() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func newQueue(capacity int) (*recorder.Queue, *telemetry.Metrics) {
	metrics := telemetry.NewProvider().Metrics
	return recorder.NewQueue(capacity, metrics, logger.NewNop()), metrics
}

func newEvent(t *testing.T) domain.Event {
	t.Helper()

	event, err := domain.NewEvent(domain.Draft{
		Kind:      string(domain.KindPageView),
		SessionID: "session-1",
	}, time.Now())
	require.NoError(t, err)
	return event
}
