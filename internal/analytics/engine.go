// Package analytics computes reports over the event log: the aggregation
// engine, report enrichment from the CMS, and the admin dashboard.
package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
)

// Result caps.
const (
	MaxPopularContent = 50
	MaxSearchTerms    = 100
	MaxPerformance    = 20
	MaxPageSize       = 100

	DefaultSearchLimit = 50
	DefaultErrorLimit  = 50
	DefaultPageSize    = 50
	DefaultCountries   = 20
)

// EngagedUser is a user engagement row with its derived session span and,
// when the CMS knows the user, profile fields.
type EngagedUser struct {
	storage.UserEngagement
	SessionDurationHours float64 `json:"sessionDurationHours"`

	Name      *string    `json:"name"`
	Email     *string    `json:"email"`
	Role      *string    `json:"role"`
	CreatedAt *time.Time `json:"createdAt"`
}

// UserPage is one page of ranked users.
type UserPage struct {
	Users []EngagedUser `json:"users"`
	Total int64         `json:"total"`
}

// Performance groups the latency reports.
type Performance struct {
	Endpoints []storage.EndpointLatency `json:"endpoints"`
	PageLoads []storage.PageLoad        `json:"pageLoads"`
}

// Engine runs read-only aggregations and applies result caps.
type Engine struct {
	store storage.Querier
}

// NewEngine creates an Engine over store.
func NewEngine(store storage.Querier) *Engine {
	return &Engine{store: store}
}

// EventCounts returns per-kind counts.
func (e *Engine) EventCounts(ctx context.Context, w domain.Window) ([]storage.EventCount, error) {
	rows, err := e.store.EventCounts(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("event counts: %w", err)
	}
	return orEmpty(rows), nil
}

// UserEngagement returns one page of users ranked by activity, plus the
// number of distinct users in the window.
func (e *Engine) UserEngagement(ctx context.Context, w domain.Window, page storage.Page) (UserPage, error) {
	page.Limit = clamp(page.Limit, DefaultPageSize, MaxPageSize)
	if page.Offset < 0 {
		page.Offset = 0
	}

	rows, total, err := e.store.UserEngagement(ctx, w, page)
	if err != nil {
		return UserPage{}, fmt.Errorf("user engagement: %w", err)
	}

	users := make([]EngagedUser, 0, len(rows))
	for _, r := range rows {
		users = append(users, EngagedUser{
			UserEngagement:       r,
			SessionDurationHours: r.SessionDurationHours(),
		})
	}
	return UserPage{Users: users, Total: total}, nil
}

// PopularContent ranks content of one dimension by views.
func (e *Engine) PopularContent(
	ctx context.Context,
	w domain.Window,
	dim storage.Dimension,
	limit int,
) ([]storage.ContentPopularity, error) {
	rows, err := e.store.PopularContent(ctx, w, dim, clamp(limit, MaxPopularContent, MaxPopularContent))
	if err != nil {
		return nil, fmt.Errorf("popular %s: %w", dim, err)
	}
	return orEmpty(rows), nil
}

// SearchAnalytics ranks search terms.
func (e *Engine) SearchAnalytics(ctx context.Context, w domain.Window, limit int) ([]storage.SearchTerm, error) {
	rows, err := e.store.SearchTerms(ctx, w, clamp(limit, DefaultSearchLimit, MaxSearchTerms))
	if err != nil {
		return nil, fmt.Errorf("search analytics: %w", err)
	}
	return orEmpty(rows), nil
}

// ErrorAnalytics ranks error groups.
func (e *Engine) ErrorAnalytics(ctx context.Context, w domain.Window, limit int) ([]storage.ErrorGroup, error) {
	rows, err := e.store.ErrorGroups(ctx, w, clamp(limit, DefaultErrorLimit, DefaultErrorLimit))
	if err != nil {
		return nil, fmt.Errorf("error analytics: %w", err)
	}
	return orEmpty(rows), nil
}

// DeviceStats breaks events down by device type.
func (e *Engine) DeviceStats(ctx context.Context, w domain.Window) ([]storage.DeviceStat, error) {
	rows, err := e.store.DeviceStats(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("device stats: %w", err)
	}
	return orEmpty(rows), nil
}

// LocationStats breaks events down by country.
func (e *Engine) LocationStats(ctx context.Context, w domain.Window, limit int) ([]storage.LocationStat, error) {
	rows, err := e.store.LocationStats(ctx, w, clamp(limit, DefaultCountries, DefaultCountries))
	if err != nil {
		return nil, fmt.Errorf("location stats: %w", err)
	}
	return orEmpty(rows), nil
}

// Totals returns the volume of a window.
func (e *Engine) Totals(ctx context.Context, w domain.Window) (storage.Totals, error) {
	t, err := e.store.Totals(ctx, w)
	if err != nil {
		return storage.Totals{}, fmt.Errorf("totals: %w", err)
	}
	return t, nil
}

// PerformanceStats returns the slowest endpoints and pages.
func (e *Engine) PerformanceStats(ctx context.Context, w domain.Window) (Performance, error) {
	var perf Performance

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := e.store.EndpointLatency(gctx, w, MaxPerformance)
		if err != nil {
			return fmt.Errorf("endpoint latency: %w", err)
		}
		perf.Endpoints = orEmpty(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := e.store.PageLoads(gctx, w, MaxPerformance)
		if err != nil {
			return fmt.Errorf("page loads: %w", err)
		}
		perf.PageLoads = orEmpty(rows)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Performance{}, err
	}
	return perf, nil
}

// clamp returns def for non-positive n and never more than maxN.
func clamp(n, def, maxN int) int {
	if n <= 0 {
		n = def
	}
	return min(n, maxN)
}

// orEmpty keeps empty results serialising as [] rather than null.
func orEmpty[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
