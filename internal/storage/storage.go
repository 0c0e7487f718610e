// Package storage persists analytics events and answers the aggregate
// queries the dashboard is built from. PostgresStore is the production
// backend; MemoryStore implements the same semantics in process.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trailverse/analytics/internal/domain"
)

// ErrUnknownDimension is returned for a content dimension other than
// parks, blogs or events.
var ErrUnknownDimension = errors.New("unknown content dimension")

// Writer appends events. Writes are never merged or updated.
type Writer interface {
	WriteEvents(ctx context.Context, events []domain.Event) error
}

// Querier runs read-only aggregations over the half-open window w.
// Results are sorted by their primary measure descending, ties broken by
// key ascending. Unique user counts ignore anonymous events.
type Querier interface {
	EventCounts(ctx context.Context, w domain.Window) ([]EventCount, error)
	UserEngagement(ctx context.Context, w domain.Window, page Page) ([]UserEngagement, int64, error)
	PopularContent(ctx context.Context, w domain.Window, dim Dimension, limit int) ([]ContentPopularity, error)
	SearchTerms(ctx context.Context, w domain.Window, limit int) ([]SearchTerm, error)
	ErrorGroups(ctx context.Context, w domain.Window, limit int) ([]ErrorGroup, error)
	DeviceStats(ctx context.Context, w domain.Window) ([]DeviceStat, error)
	LocationStats(ctx context.Context, w domain.Window, limit int) ([]LocationStat, error)
	Totals(ctx context.Context, w domain.Window) (Totals, error)
	EndpointLatency(ctx context.Context, w domain.Window, limit int) ([]EndpointLatency, error)
	PageLoads(ctx context.Context, w domain.Window, limit int) ([]PageLoad, error)
}

// Store is a Writer and Querier that can report its health.
type Store interface {
	Writer
	Querier
	Ping(ctx context.Context) error
}

// Page selects a slice of a ranked result.
type Page struct {
	Limit  int
	Offset int
}

// Dimension names a kind of site content.
type Dimension string

const (
	DimensionParks  Dimension = "parks"
	DimensionBlogs  Dimension = "blogs"
	DimensionEvents Dimension = "events"
)

// AllDimensions returns every content dimension.
func AllDimensions() []Dimension {
	return []Dimension{DimensionParks, DimensionBlogs, DimensionEvents}
}

// ParseDimension validates s.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	if _, ok := dimensionKinds[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
	return d, nil
}

var dimensionKinds = map[Dimension]domain.Kind{
	DimensionParks:  domain.KindParkView,
	DimensionBlogs:  domain.KindBlogView,
	DimensionEvents: domain.KindEventView,
}

// ViewKind returns the event kind counted as a view of d.
func (d Dimension) ViewKind() domain.Kind {
	return dimensionKinds[d]
}

// ContentRef extracts the reference d counts from refs.
func (d Dimension) ContentRef(refs domain.ContentRefs) string {
	switch d {
	case DimensionParks:
		return refs.ParkCode
	case DimensionBlogs:
		return refs.BlogID
	case DimensionEvents:
		return refs.EventID
	default:
		return ""
	}
}

// EventCount is one row of the per-kind breakdown.
type EventCount struct {
	EventKind   string `db:"event_kind"   json:"eventKind"`
	Count       int64  `db:"count"        json:"count"`
	UniqueUsers int64  `db:"unique_users" json:"uniqueUsers"`
}

// UserEngagement summarises one user's activity.
type UserEngagement struct {
	UserID             string    `db:"user_id"              json:"userId"`
	TotalEvents        int64     `db:"total_events"         json:"totalEvents"`
	UniqueSessions     int64     `db:"unique_sessions"      json:"uniqueSessions"`
	DistinctEventKinds int64     `db:"distinct_event_kinds" json:"uniqueEventTypes"`
	FirstActivity      time.Time `db:"first_activity"       json:"firstActivity"`
	LastActivity       time.Time `db:"last_activity"        json:"lastActivity"`
}

// SessionDurationHours is the span between first and last activity.
func (u UserEngagement) SessionDurationHours() float64 {
	return u.LastActivity.Sub(u.FirstActivity).Hours()
}

// ContentPopularity counts views of one piece of content.
type ContentPopularity struct {
	ContentID   string `db:"content_id"   json:"contentId"`
	ViewCount   int64  `db:"view_count"   json:"viewCount"`
	UniqueUsers int64  `db:"unique_users" json:"uniqueUsers"`
}

// SearchTerm aggregates searches for one term. AverageResultCount is nil
// when no search for the term reported a result count.
type SearchTerm struct {
	Term               string   `db:"term"                 json:"term"`
	Count              int64    `db:"count"                json:"count"`
	UniqueUsers        int64    `db:"unique_users"         json:"uniqueUsers"`
	AverageResultCount *float64 `db:"average_result_count" json:"averageResultCount"`
}

// ErrorGroup aggregates error events sharing a code and message.
type ErrorGroup struct {
	ErrorCode      *string   `db:"error_code"      json:"errorCode"`
	ErrorMessage   *string   `db:"error_message"   json:"errorMessage"`
	Count          int64     `db:"count"           json:"count"`
	UniqueUsers    int64     `db:"unique_users"    json:"uniqueUsers"`
	LastOccurrence time.Time `db:"last_occurrence" json:"lastOccurrence"`
}

// DeviceStat counts events per device type.
type DeviceStat struct {
	DeviceType     string `db:"device_type"     json:"deviceType"`
	Count          int64  `db:"count"           json:"count"`
	UniqueBrowsers int64  `db:"unique_browsers" json:"uniqueBrowsers"`
}

// LocationStat counts events per country.
type LocationStat struct {
	Country       string `db:"country"        json:"country"`
	Count         int64  `db:"count"          json:"count"`
	UniqueRegions int64  `db:"unique_regions" json:"uniqueRegions"`
}

// Totals is the overall volume of a window.
type Totals struct {
	TotalEvents int64 `db:"total_events" json:"totalEvents"`
	UniqueUsers int64 `db:"unique_users" json:"uniqueUsers"`
}

// EndpointLatency summarises api_call response times for one route.
type EndpointLatency struct {
	Method   string  `db:"method"   json:"method"`
	Endpoint string  `db:"endpoint" json:"endpoint"`
	Count    int64   `db:"count"    json:"count"`
	AvgMs    float64 `db:"avg_ms"   json:"avgResponseTimeMs"`
	MaxMs    int64   `db:"max_ms"   json:"maxResponseTimeMs"`
	P95Ms    float64 `db:"p95_ms"   json:"p95ResponseTimeMs"`
}

// PageLoad summarises performance events for one page.
type PageLoad struct {
	PageURL string  `db:"page_url" json:"pageUrl"`
	Count   int64   `db:"count"    json:"count"`
	AvgMs   float64 `db:"avg_ms"   json:"avgDurationMs"`
	MaxMs   int64   `db:"max_ms"   json:"maxDurationMs"`
}
