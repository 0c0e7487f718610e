package analytics_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
)

var (
	testNow    = time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	errBackend = errors.New("backend unavailable")
)

// seed writes events built from drafts into a fresh memory store.
func seed(t *testing.T, drafts ...domain.Draft) *storage.MemoryStore {
	t.Helper()

	store := storage.NewMemoryStore()
	events := make([]domain.Event, 0, len(drafts))
	for _, d := range drafts {
		if d.SessionID == "" {
			d.SessionID = "session-" + d.UserID
		}
		e, err := domain.NewEvent(d, testNow)
		require.NoError(t, err)
		events = append(events, e)
	}
	require.NoError(t, store.WriteEvents(context.Background(), events))
	return store
}

func at(ago time.Duration) time.Time {
	return testNow.Add(-ago)
}

// recordingQuerier wraps a Querier, records the limits it was asked for
// and can fail chosen calls.
type recordingQuerier struct {
	storage.Querier

	mu     sync.Mutex
	limits map[string]int
	failOn string
}

func newRecordingQuerier(inner storage.Querier) *recordingQuerier {
	return &recordingQuerier{Querier: inner, limits: make(map[string]int)}
}

func (q *recordingQuerier) note(call string, limit int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.limits[call] = limit
	if q.failOn == call {
		return errBackend
	}
	return nil
}

func (q *recordingQuerier) limit(call string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limits[call]
}

func (q *recordingQuerier) UserEngagement(
	ctx context.Context, w domain.Window, page storage.Page,
) ([]storage.UserEngagement, int64, error) {
	if err := q.note("users", page.Limit); err != nil {
		return nil, 0, err
	}
	return q.Querier.UserEngagement(ctx, w, page)
}

func (q *recordingQuerier) PopularContent(
	ctx context.Context, w domain.Window, dim storage.Dimension, limit int,
) ([]storage.ContentPopularity, error) {
	if err := q.note("content:"+string(dim), limit); err != nil {
		return nil, err
	}
	return q.Querier.PopularContent(ctx, w, dim, limit)
}

func (q *recordingQuerier) SearchTerms(ctx context.Context, w domain.Window, limit int) ([]storage.SearchTerm, error) {
	if err := q.note("search", limit); err != nil {
		return nil, err
	}
	return q.Querier.SearchTerms(ctx, w, limit)
}

func (q *recordingQuerier) ErrorGroups(ctx context.Context, w domain.Window, limit int) ([]storage.ErrorGroup, error) {
	if err := q.note("errors", limit); err != nil {
		return nil, err
	}
	return q.Querier.ErrorGroups(ctx, w, limit)
}

func (q *recordingQuerier) DeviceStats(ctx context.Context, w domain.Window) ([]storage.DeviceStat, error) {
	if err := q.note("devices", 0); err != nil {
		return nil, err
	}
	return q.Querier.DeviceStats(ctx, w)
}

func (q *recordingQuerier) EndpointLatency(
	ctx context.Context, w domain.Window, limit int,
) ([]storage.EndpointLatency, error) {
	if err := q.note("endpoints", limit); err != nil {
		return nil, err
	}
	return q.Querier.EndpointLatency(ctx, w, limit)
}
