package storage

import (
	"context"
	"fmt"

	"github.com/trailverse/analytics/internal/domain"
)

const windowFilter = "occurred_at >= $1 AND occurred_at < $2"

// dimensionColumns maps a dimension to the column holding its reference.
// Values are interpolated into SQL, so they must stay constants.
var dimensionColumns = map[Dimension]string{
	DimensionParks:  "park_code",
	DimensionBlogs:  "blog_id",
	DimensionEvents: "event_ref_id",
}

// EventCounts groups the window by event kind.
func (s *PostgresStore) EventCounts(ctx context.Context, w domain.Window) ([]EventCount, error) {
	query := `
		SELECT event_kind, COUNT(*) AS count, COUNT(DISTINCT user_id) AS unique_users
		FROM analytics_events
		WHERE ` + windowFilter + `
		GROUP BY event_kind
		ORDER BY count DESC, event_kind ASC
	`

	var rows []EventCount
	if err := s.db.SelectContext(ctx, &rows, query, w.Start, w.End); err != nil {
		return nil, fmt.Errorf("query event counts: %w", err)
	}
	return rows, nil
}

// UserEngagement ranks identified users by event volume and returns the
// requested page plus the total number of identified users.
func (s *PostgresStore) UserEngagement(
	ctx context.Context, w domain.Window, page Page,
) ([]UserEngagement, int64, error) {
	query := `
		SELECT
			user_id,
			COUNT(*) AS total_events,
			COUNT(DISTINCT session_id) AS unique_sessions,
			COUNT(DISTINCT event_kind) AS distinct_event_kinds,
			MIN(occurred_at) AS first_activity,
			MAX(occurred_at) AS last_activity
		FROM analytics_events
		WHERE ` + windowFilter + ` AND user_id IS NOT NULL
		GROUP BY user_id
		ORDER BY total_events DESC, user_id ASC
		LIMIT $3 OFFSET $4
	`

	var rows []UserEngagement
	if err := s.db.SelectContext(ctx, &rows, query, w.Start, w.End, page.Limit, page.Offset); err != nil {
		return nil, 0, fmt.Errorf("query user engagement: %w", err)
	}

	countQuery := `
		SELECT COUNT(DISTINCT user_id)
		FROM analytics_events
		WHERE ` + windowFilter + ` AND user_id IS NOT NULL
	`

	var total int64
	if err := s.db.GetContext(ctx, &total, countQuery, w.Start, w.End); err != nil {
		return nil, 0, fmt.Errorf("count engaged users: %w", err)
	}

	return rows, total, nil
}

// PopularContent ranks references of dim by view count.
func (s *PostgresStore) PopularContent(
	ctx context.Context, w domain.Window, dim Dimension, limit int,
) ([]ContentPopularity, error) {
	column, ok := dimensionColumns[dim]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}

	query := fmt.Sprintf(`
		SELECT %[1]s AS content_id, COUNT(*) AS view_count, COUNT(DISTINCT user_id) AS unique_users
		FROM analytics_events
		WHERE %[2]s AND event_kind = $3 AND %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY view_count DESC, content_id ASC
		LIMIT $4
	`, column, windowFilter)

	var rows []ContentPopularity
	if err := s.db.SelectContext(ctx, &rows, query, w.Start, w.End, string(dim.ViewKind()), limit); err != nil {
		return nil, fmt.Errorf("query popular %s: %w", dim, err)
	}
	return rows, nil
}

// SearchTerms groups search events that carry a term.
func (s *PostgresStore) SearchTerms(ctx context.Context, w domain.Window, limit int) ([]SearchTerm, error) {
	query := `
		SELECT
			metadata->>'searchTerm' AS term,
			COUNT(*) AS count,
			COUNT(DISTINCT user_id) AS unique_users,
			AVG((metadata->>'resultCount')::numeric)::float8 AS average_result_count
		FROM analytics_events
		WHERE ` + windowFilter + ` AND event_kind = 'search' AND metadata->>'searchTerm' IS NOT NULL
		GROUP BY metadata->>'searchTerm'
		ORDER BY count DESC, term ASC
		LIMIT $3
	`

	var rows []SearchTerm
	if err := s.db.SelectContext(ctx, &rows, query, w.Start, w.End, limit); err != nil {
		return nil, fmt.Errorf("query search terms: %w", err)
	}
	return rows, nil
}

// ErrorGroups groups error events by code and message. Events with neither
// are excluded.
func (s *PostgresStore) ErrorGroups(ctx context.Context, w domain.Window, limit int) ([]ErrorGroup, error) {
	query := `
		SELECT
			error_code,
			error_message,
			COUNT(*) AS count,
			COUNT(DISTINCT user_id) AS unique_users,
			MAX(occurred_at) AS last_occurrence
		FROM analytics_events
		WHERE ` + windowFilter + ` AND event_kind = 'error'
			AND (error_code IS NOT NULL OR error_message IS NOT NULL)
		GROUP BY error_code, error_message
		ORDER BY count DESC, COALESCE(error_code, '') ASC, COALESCE(error_message, '') ASC
		LIMIT $3
	`

	var rows []ErrorGroup
	if err := s.db.SelectContext(ctx, &rows, query, w.Start, w.End, limit); err != nil {
		return nil, fmt.Errorf("query error groups: %w", err)
	}
	return rows, nil
}

// DeviceStats groups events by device type.
func (s *PostgresStore) DeviceStats(ctx context.Context, w domain.Window) ([]DeviceStat, error) {
	query := `
		SELECT device_type, COUNT(*) AS count, COUNT(DISTINCT browser_name) AS unique_browsers
		FROM analytics_events
		WHERE ` + windowFilter + ` AND device_type IS NOT NULL
		GROUP BY device_type
		ORDER BY count DESC, device_type ASC
	`

	var rows []DeviceStat
	if err := s.db.SelectContext(ctx, &rows, query, w.Start, w.End); err != nil {
		return nil, fmt.Errorf("query device stats: %w", err)
	}
	return rows, nil
}

// LocationStats groups events by country.
func (s *PostgresStore) LocationStats(ctx context.Context, w domain.Window, limit int) ([]LocationStat, error) {
	query := `
		SELECT country, COUNT(*) AS count, COUNT(DISTINCT region) AS unique_regions
		FROM analytics_events
		WHERE ` + windowFilter + ` AND country IS NOT NULL
		GROUP BY country
		ORDER BY count DESC, country ASC
		LIMIT $3
	`

	var rows []LocationStat
	if err := s.db.SelectContext(ctx, &rows, query, w.Start, w.End, limit); err != nil {
		return nil, fmt.Errorf("query location stats: %w", err)
	}
	return rows, nil
}

// Totals counts all events and identified users in the window.
func (s *PostgresStore) Totals(ctx context.Context, w domain.Window) (Totals, error) {
	query := `
		SELECT COUNT(*) AS total_events, COUNT(DISTINCT user_id) AS unique_users
		FROM analytics_events
		WHERE ` + windowFilter

	var t Totals
	if err := s.db.GetContext(ctx, &t, query, w.Start, w.End); err != nil {
		return Totals{}, fmt.Errorf("query totals: %w", err)
	}
	return t, nil
}

// EndpointLatency ranks API routes by mean response time.
func (s *PostgresStore) EndpointLatency(ctx context.Context, w domain.Window, limit int) ([]EndpointLatency, error) {
	query := `
		SELECT
			COALESCE(metadata->>'method', '') AS method,
			metadata->>'endpoint' AS endpoint,
			COUNT(*) AS count,
			AVG(response_time_ms)::float8 AS avg_ms,
			MAX(response_time_ms) AS max_ms,
			percentile_cont(0.95) WITHIN GROUP (ORDER BY response_time_ms) AS p95_ms
		FROM analytics_events
		WHERE ` + windowFilter + ` AND event_kind = 'api_call'
			AND response_time_ms IS NOT NULL AND metadata->>'endpoint' IS NOT NULL
		GROUP BY 1, 2
		ORDER BY avg_ms DESC, endpoint ASC, method ASC
		LIMIT $3
	`

	var rows []EndpointLatency
	if err := s.db.SelectContext(ctx, &rows, query, w.Start, w.End, limit); err != nil {
		return nil, fmt.Errorf("query endpoint latency: %w", err)
	}
	return rows, nil
}

// PageLoads ranks pages by mean load duration from performance events.
func (s *PostgresStore) PageLoads(ctx context.Context, w domain.Window, limit int) ([]PageLoad, error) {
	query := `
		SELECT
			page_url,
			COUNT(*) AS count,
			AVG(duration_ms)::float8 AS avg_ms,
			MAX(duration_ms) AS max_ms
		FROM analytics_events
		WHERE ` + windowFilter + ` AND event_kind = 'performance'
			AND duration_ms IS NOT NULL AND page_url IS NOT NULL
		GROUP BY page_url
		ORDER BY avg_ms DESC, page_url ASC
		LIMIT $3
	`

	var rows []PageLoad
	if err := s.db.SelectContext(ctx, &rows, query, w.Start, w.End, limit); err != nil {
		return nil, fmt.Errorf("query page loads: %w", err)
	}
	return rows, nil
}
