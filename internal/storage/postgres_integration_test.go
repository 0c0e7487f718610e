package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
)

const postgresImage = "postgres:16-alpine"

// startPostgres runs a migrated PostgreSQL container for the test. The test
// is skipped when no container runtime is available.
func startPostgres(t *testing.T) *storage.PostgresStore {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("analytics"),
		postgres.WithUsername("analytics"),
		postgres.WithPassword("analytics"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := storage.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "analytics",
		Password: "analytics",
		DBName:   "analytics",
		SSLMode:  "disable",
	}
	_, err = storage.MigrateUp(cfg)
	require.NoError(t, err)

	db, err := storage.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return storage.NewPostgresStore(db)
}

func parityDrafts() []domain.Draft {
	ms := func(v int64) *int64 { return &v }
	device := func(deviceType, browser, country, region string) domain.ClientContext {
		return domain.ClientContext{
			Device:   domain.Device{Type: deviceType},
			Browser:  domain.Software{Name: browser},
			Location: domain.Location{Country: country, Region: region},
		}
	}

	return []domain.Draft{
		{Kind: "park_view", UserID: "u1", SessionID: "a", Timestamp: t0,
			Content: domain.ContentRefs{ParkCode: "yose"}, Context: device("mobile", "Chrome", "US", "CA")},
		{Kind: "park_view", UserID: "u1", SessionID: "b", Timestamp: t0.Add(2 * time.Hour),
			Content: domain.ContentRefs{ParkCode: "yose"}, Context: device("mobile", "Safari", "US", "UT")},
		{Kind: "park_view", SessionID: "anon", Timestamp: t0.Add(time.Hour),
			Content: domain.ContentRefs{ParkCode: "yose"}, Context: device("mobile", "Chrome", "CA", "BC")},
		{Kind: "park_view", UserID: "u2", SessionID: "c", Timestamp: t0.Add(time.Hour),
			Content: domain.ContentRefs{ParkCode: "zion"}, Context: device("desktop", "Firefox", "US", "CA")},
		{Kind: "blog_view", UserID: "u2", SessionID: "c", Timestamp: t0.Add(time.Hour),
			Content: domain.ContentRefs{BlogID: "b1"}},
		{Kind: "event_view", SessionID: "anon", Timestamp: t0.Add(time.Hour),
			Content: domain.ContentRefs{EventID: "ev1"}},

		{Kind: "search", UserID: "u1", SessionID: "a", Timestamp: t0.Add(time.Minute),
			Metadata: map[string]any{"searchTerm": "camp\x00ing", "resultCount": 10}},
		{Kind: "search", SessionID: "anon", Timestamp: t0.Add(time.Minute),
			Metadata: map[string]any{"searchTerm": "camping", "resultCount": 20}},
		{Kind: "search", UserID: "u1", SessionID: "a", Timestamp: t0.Add(time.Minute),
			Metadata: map[string]any{"searchTerm": "camping", "resultCount": 30}},
		{Kind: "search", UserID: "u2", SessionID: "c", Timestamp: t0.Add(time.Minute),
			Metadata: map[string]any{"searchTerm": "hiking"}},
		{Kind: "search", SessionID: "anon", Timestamp: t0.Add(time.Minute),
			Metadata: map[string]any{"resultCount": 4}},

		{Kind: "error", UserID: "u1", SessionID: "a", Timestamp: t0.Add(time.Minute),
			Error: domain.ErrorDetail{Code: "E1", Message: "boom"}},
		{Kind: "error", SessionID: "anon", Timestamp: t0.Add(5 * time.Minute),
			Error: domain.ErrorDetail{Code: "E1", Message: "boom"}},
		{Kind: "error", SessionID: "anon", Timestamp: t0.Add(time.Minute),
			Error: domain.ErrorDetail{Message: "no code"}},
		{Kind: "error", SessionID: "anon", Timestamp: t0.Add(time.Minute)},

		{Kind: "api_call", SessionID: "srv", Timestamp: t0.Add(time.Minute),
			Metadata: map[string]any{"endpoint": "/api/parks", "method": "GET"},
			Timing:   domain.Timing{ResponseTimeMs: ms(100)}},
		{Kind: "api_call", SessionID: "srv", Timestamp: t0.Add(time.Minute),
			Metadata: map[string]any{"endpoint": "/api/parks", "method": "GET"},
			Timing:   domain.Timing{ResponseTimeMs: ms(200)}},
		{Kind: "api_call", SessionID: "srv", Timestamp: t0.Add(time.Minute),
			Metadata: map[string]any{"endpoint": "/api/parks", "method": "GET"},
			Timing:   domain.Timing{ResponseTimeMs: ms(400)}},
		{Kind: "api_call", SessionID: "srv", Timestamp: t0.Add(time.Minute),
			Metadata: map[string]any{"endpoint": "/api/blogs", "method": "POST"},
			Timing:   domain.Timing{ResponseTimeMs: ms(50)}},

		{Kind: "performance", SessionID: "anon", Timestamp: t0.Add(time.Minute),
			Timing: domain.Timing{DurationMs: ms(800)}, Context: domain.ClientContext{PageURL: "/parks"}},
		{Kind: "performance", SessionID: "anon", Timestamp: t0.Add(time.Minute),
			Timing: domain.Timing{DurationMs: ms(1300)}, Context: domain.ClientContext{PageURL: "/parks"}},
		{Kind: "performance", SessionID: "anon", Timestamp: t0.Add(time.Minute),
			Timing: domain.Timing{DurationMs: ms(300)}, Context: domain.ClientContext{PageURL: "/blog"}},

		// Outside the window on both sides.
		{Kind: "park_view", UserID: "u3", SessionID: "old", Timestamp: t0.Add(-time.Hour),
			Content: domain.ContentRefs{ParkCode: "yose"}},
		{Kind: "park_view", UserID: "u3", SessionID: "new", Timestamp: t0.Add(24 * time.Hour),
			Content: domain.ContentRefs{ParkCode: "yose"}},
	}
}

// TestPostgresStore_MatchesMemoryStore writes the same events to both
// stores and checks every aggregation agrees.
func TestPostgresStore_MatchesMemoryStore(t *testing.T) {
	pg := startPostgres(t)
	ctx := t.Context()

	events := make([]domain.Event, 0, len(parityDrafts()))
	for _, d := range parityDrafts() {
		events = append(events, newEvent(t, d))
	}
	mem := storage.NewMemoryStore()
	require.NoError(t, mem.WriteEvents(ctx, events))
	require.NoError(t, pg.WriteEvents(ctx, events))

	w := window(0, 24*time.Hour)

	t.Run("totals", func(t *testing.T) {
		want, err := mem.Totals(ctx, w)
		require.NoError(t, err)
		got, err := pg.Totals(ctx, w)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, storage.Totals{TotalEvents: int64(len(events) - 2), UniqueUsers: 2}, got)
	})

	t.Run("event counts", func(t *testing.T) {
		want, err := mem.EventCounts(ctx, w)
		require.NoError(t, err)
		got, err := pg.EventCounts(ctx, w)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("user engagement", func(t *testing.T) {
		for _, page := range []storage.Page{{Limit: 10}, {Limit: 1}, {Limit: 1, Offset: 1}, {Limit: 5, Offset: 9}} {
			want, wantTotal, err := mem.UserEngagement(ctx, w, page)
			require.NoError(t, err)
			got, gotTotal, err := pg.UserEngagement(ctx, w, page)
			require.NoError(t, err)

			assert.Equal(t, wantTotal, gotTotal)
			assert.Equal(t, utcEngagement(want), utcEngagement(got), "page %+v", page)
		}
	})

	t.Run("popular content", func(t *testing.T) {
		for _, dim := range storage.AllDimensions() {
			want, err := mem.PopularContent(ctx, w, dim, 10)
			require.NoError(t, err)
			got, err := pg.PopularContent(ctx, w, dim, 10)
			require.NoError(t, err)
			assert.Equal(t, want, got, "dimension %s", dim)
		}
	})

	t.Run("search terms", func(t *testing.T) {
		want, err := mem.SearchTerms(ctx, w, 10)
		require.NoError(t, err)
		got, err := pg.SearchTerms(ctx, w, 10)
		require.NoError(t, err)

		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Term, got[i].Term)
			assert.Equal(t, want[i].Count, got[i].Count)
			assert.Equal(t, want[i].UniqueUsers, got[i].UniqueUsers)
			if want[i].AverageResultCount == nil {
				assert.Nil(t, got[i].AverageResultCount, want[i].Term)
				continue
			}
			require.NotNil(t, got[i].AverageResultCount, want[i].Term)
			assert.InDelta(t, *want[i].AverageResultCount, *got[i].AverageResultCount, 1e-6)
		}
		require.NotEmpty(t, got)
		assert.Equal(t, "camping", got[0].Term)
	})

	t.Run("error groups", func(t *testing.T) {
		want, err := mem.ErrorGroups(ctx, w, 10)
		require.NoError(t, err)
		got, err := pg.ErrorGroups(ctx, w, 10)
		require.NoError(t, err)
		assert.Equal(t, utcErrors(want), utcErrors(got))
	})

	t.Run("devices and locations", func(t *testing.T) {
		wantDevices, err := mem.DeviceStats(ctx, w)
		require.NoError(t, err)
		gotDevices, err := pg.DeviceStats(ctx, w)
		require.NoError(t, err)
		assert.Equal(t, wantDevices, gotDevices)

		wantLocations, err := mem.LocationStats(ctx, w, 10)
		require.NoError(t, err)
		gotLocations, err := pg.LocationStats(ctx, w, 10)
		require.NoError(t, err)
		assert.Equal(t, wantLocations, gotLocations)
	})

	t.Run("endpoint latency", func(t *testing.T) {
		want, err := mem.EndpointLatency(ctx, w, 10)
		require.NoError(t, err)
		got, err := pg.EndpointLatency(ctx, w, 10)
		require.NoError(t, err)

		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Method, got[i].Method)
			assert.Equal(t, want[i].Endpoint, got[i].Endpoint)
			assert.Equal(t, want[i].Count, got[i].Count)
			assert.Equal(t, want[i].MaxMs, got[i].MaxMs)
			assert.InDelta(t, want[i].AvgMs, got[i].AvgMs, 1e-6)
			assert.InDelta(t, want[i].P95Ms, got[i].P95Ms, 1e-6)
		}
	})

	t.Run("page loads", func(t *testing.T) {
		want, err := mem.PageLoads(ctx, w, 10)
		require.NoError(t, err)
		got, err := pg.PageLoads(ctx, w, 10)
		require.NoError(t, err)

		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].PageURL, got[i].PageURL)
			assert.Equal(t, want[i].Count, got[i].Count)
			assert.Equal(t, want[i].MaxMs, got[i].MaxMs)
			assert.InDelta(t, want[i].AvgMs, got[i].AvgMs, 1e-6)
		}
	})
}

func utcEngagement(rows []storage.UserEngagement) []storage.UserEngagement {
	out := make([]storage.UserEngagement, len(rows))
	for i, r := range rows {
		r.FirstActivity = r.FirstActivity.UTC()
		r.LastActivity = r.LastActivity.UTC()
		out[i] = r
	}
	return out
}

func utcErrors(rows []storage.ErrorGroup) []storage.ErrorGroup {
	out := make([]storage.ErrorGroup, len(rows))
	for i, r := range rows {
		r.LastOccurrence = r.LastOccurrence.UTC()
		out[i] = r
	}
	return out
}
