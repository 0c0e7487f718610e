package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailverse/analytics/internal/analytics"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
)

func TestEngine_AppliesCaps(t *testing.T) {
	t.Parallel()

	q := newRecordingQuerier(storage.NewMemoryStore())
	engine := analytics.NewEngine(q)
	ctx := context.Background()
	w := domain.Period7d.Window(testNow)

	_, err := engine.PopularContent(ctx, w, storage.DimensionParks, 500)
	require.NoError(t, err)
	_, err = engine.SearchAnalytics(ctx, w, 0)
	require.NoError(t, err)
	_, err = engine.ErrorAnalytics(ctx, w, 1000)
	require.NoError(t, err)
	_, err = engine.UserEngagement(ctx, w, storage.Page{Limit: 1000})
	require.NoError(t, err)
	_, err = engine.PerformanceStats(ctx, w)
	require.NoError(t, err)

	assert.Equal(t, analytics.MaxPopularContent, q.limit("content:parks"))
	assert.Equal(t, analytics.DefaultSearchLimit, q.limit("search"))
	assert.Equal(t, analytics.DefaultErrorLimit, q.limit("errors"))
	assert.Equal(t, analytics.MaxPageSize, q.limit("users"))
	assert.Equal(t, analytics.MaxPerformance, q.limit("endpoints"))

	_, err = engine.SearchAnalytics(ctx, w, 250)
	require.NoError(t, err)
	assert.Equal(t, analytics.MaxSearchTerms, q.limit("search"))
}

func TestEngine_EmptyResultsAreNotNil(t *testing.T) {
	t.Parallel()

	engine := analytics.NewEngine(storage.NewMemoryStore())
	w := domain.Period24h.Window(testNow)

	counts, err := engine.EventCounts(context.Background(), w)
	require.NoError(t, err)
	assert.NotNil(t, counts)
	assert.Empty(t, counts)

	perf, err := engine.PerformanceStats(context.Background(), w)
	require.NoError(t, err)
	assert.NotNil(t, perf.Endpoints)
	assert.NotNil(t, perf.PageLoads)
}

func TestEngine_UserEngagementDerivesSessionHours(t *testing.T) {
	t.Parallel()

	store := seed(t,
		domain.Draft{Kind: "page_view", UserID: "u1", Timestamp: at(3 * time.Hour)},
		domain.Draft{Kind: "search", UserID: "u1", Timestamp: at(90 * time.Minute)},
		domain.Draft{Kind: "page_view", Timestamp: at(time.Hour)},
	)

	page, err := analytics.NewEngine(store).UserEngagement(
		context.Background(), domain.Period24h.Window(testNow), storage.Page{},
	)
	require.NoError(t, err)

	require.Len(t, page.Users, 1)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "u1", page.Users[0].UserID)
	assert.InDelta(t, 1.5, page.Users[0].SessionDurationHours, 1e-9)
	assert.Nil(t, page.Users[0].Name)
}

func TestEngine_WrapsQueryErrors(t *testing.T) {
	t.Parallel()

	q := newRecordingQuerier(storage.NewMemoryStore())
	q.failOn = "devices"

	_, err := analytics.NewEngine(q).DeviceStats(context.Background(), domain.Period7d.Window(testNow))
	require.ErrorIs(t, err, errBackend)
	assert.Contains(t, err.Error(), "device stats")
}
