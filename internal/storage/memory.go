package storage

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/trailverse/analytics/internal/domain"
)

// MemoryStore keeps events in process. It backs storage.driver "memory" for
// local development and gives tests a store with real aggregation semantics.
type MemoryStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// WriteEvents appends events.
func (s *MemoryStore) WriteEvents(_ context.Context, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)
	return nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Events returns a copy of every stored event.
func (s *MemoryStore) Events() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// inWindow returns the events inside w that satisfy keep.
func (s *MemoryStore) inWindow(w domain.Window, keep func(*domain.Event) bool) []*domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Event
	for i := range s.events {
		e := &s.events[i]
		if w.Contains(e.Timestamp) && (keep == nil || keep(e)) {
			out = append(out, e)
		}
	}
	return out
}

// group accumulates the events sharing one key.
type group struct {
	events []*domain.Event
}

func (g *group) count() int64 {
	return int64(len(g.events))
}

func (g *group) distinct(field func(*domain.Event) string) int64 {
	seen := make(map[string]struct{}, len(g.events))
	for _, e := range g.events {
		if v := field(e); v != "" {
			seen[v] = struct{}{}
		}
	}
	return int64(len(seen))
}

func (g *group) uniqueUsers() int64 {
	return g.distinct(func(e *domain.Event) string { return e.UserID })
}

func groupBy(events []*domain.Event, key func(*domain.Event) string) ([]string, map[string]*group) {
	groups := make(map[string]*group)
	var keys []string
	for _, e := range events {
		k := key(e)
		if k == "" {
			continue
		}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.events = append(g.events, e)
	}
	return keys, groups
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// EventCounts groups the window by event kind.
func (s *MemoryStore) EventCounts(_ context.Context, w domain.Window) ([]EventCount, error) {
	keys, groups := groupBy(s.inWindow(w, nil), func(e *domain.Event) string { return string(e.Kind) })

	rows := make([]EventCount, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		rows = append(rows, EventCount{EventKind: k, Count: g.count(), UniqueUsers: g.uniqueUsers()})
	}

	slices.SortFunc(rows, func(a, b EventCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.EventKind, b.EventKind))
	})
	return rows, nil
}

// UserEngagement ranks identified users by event volume.
func (s *MemoryStore) UserEngagement(_ context.Context, w domain.Window, page Page) ([]UserEngagement, int64, error) {
	keys, groups := groupBy(s.inWindow(w, nil), func(e *domain.Event) string { return e.UserID })

	rows := make([]UserEngagement, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		row := UserEngagement{
			UserID:             k,
			TotalEvents:        g.count(),
			UniqueSessions:     g.distinct(func(e *domain.Event) string { return e.SessionID }),
			DistinctEventKinds: g.distinct(func(e *domain.Event) string { return string(e.Kind) }),
			FirstActivity:      g.events[0].Timestamp,
			LastActivity:       g.events[0].Timestamp,
		}
		for _, e := range g.events[1:] {
			if e.Timestamp.Before(row.FirstActivity) {
				row.FirstActivity = e.Timestamp
			}
			if e.Timestamp.After(row.LastActivity) {
				row.LastActivity = e.Timestamp
			}
		}
		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(a, b UserEngagement) int {
		return cmp.Or(cmp.Compare(b.TotalEvents, a.TotalEvents), cmp.Compare(a.UserID, b.UserID))
	})

	total := int64(len(rows))
	if page.Offset >= len(rows) {
		return []UserEngagement{}, total, nil
	}
	return truncate(rows[page.Offset:], page.Limit), total, nil
}

// PopularContent ranks references of dim by view count.
func (s *MemoryStore) PopularContent(
	_ context.Context, w domain.Window, dim Dimension, limit int,
) ([]ContentPopularity, error) {
	kind := dim.ViewKind()
	if kind == "" {
		return nil, ErrUnknownDimension
	}

	events := s.inWindow(w, func(e *domain.Event) bool { return e.Kind == kind })
	keys, groups := groupBy(events, func(e *domain.Event) string { return dim.ContentRef(e.Content) })

	rows := make([]ContentPopularity, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		rows = append(rows, ContentPopularity{ContentID: k, ViewCount: g.count(), UniqueUsers: g.uniqueUsers()})
	}

	slices.SortFunc(rows, func(a, b ContentPopularity) int {
		return cmp.Or(cmp.Compare(b.ViewCount, a.ViewCount), cmp.Compare(a.ContentID, b.ContentID))
	})
	return truncate(rows, limit), nil
}

func searchPayload(e *domain.Event) (domain.SearchPayload, bool) {
	p, ok := e.Payload.(domain.SearchPayload)
	return p, ok
}

// SearchTerms groups search events that carry a term.
func (s *MemoryStore) SearchTerms(_ context.Context, w domain.Window, limit int) ([]SearchTerm, error) {
	events := s.inWindow(w, func(e *domain.Event) bool { return e.Kind == domain.KindSearch })
	keys, groups := groupBy(events, func(e *domain.Event) string {
		p, _ := searchPayload(e)
		return p.SearchTerm
	})

	rows := make([]SearchTerm, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		row := SearchTerm{Term: k, Count: g.count(), UniqueUsers: g.uniqueUsers()}

		var sum float64
		var n int
		for _, e := range g.events {
			if p, ok := searchPayload(e); ok && p.ResultCount != nil {
				sum += float64(*p.ResultCount)
				n++
			}
		}
		if n > 0 {
			avg := sum / float64(n)
			row.AverageResultCount = &avg
		}
		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(a, b SearchTerm) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Term, b.Term))
	})
	return truncate(rows, limit), nil
}

// ErrorGroups groups error events by code and message.
func (s *MemoryStore) ErrorGroups(_ context.Context, w domain.Window, limit int) ([]ErrorGroup, error) {
	events := s.inWindow(w, func(e *domain.Event) bool {
		return e.Kind == domain.KindError && (e.Error.Code != "" || e.Error.Message != "")
	})
	// NUL separates code from message.
	keys, groups := groupBy(events, func(e *domain.Event) string { return e.Error.Code + "\x00" + e.Error.Message })

	rows := make([]ErrorGroup, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		first := g.events[0]
		row := ErrorGroup{
			ErrorCode:      optional(first.Error.Code),
			ErrorMessage:   optional(first.Error.Message),
			Count:          g.count(),
			UniqueUsers:    g.uniqueUsers(),
			LastOccurrence: latest(g.events),
		}
		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(a, b ErrorGroup) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(deref(a.ErrorCode), deref(b.ErrorCode)),
			cmp.Compare(deref(a.ErrorMessage), deref(b.ErrorMessage)),
		)
	})
	return truncate(rows, limit), nil
}

// DeviceStats groups events by device type.
func (s *MemoryStore) DeviceStats(_ context.Context, w domain.Window) ([]DeviceStat, error) {
	keys, groups := groupBy(s.inWindow(w, nil), func(e *domain.Event) string { return e.Context.Device.Type })

	rows := make([]DeviceStat, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		rows = append(rows, DeviceStat{
			DeviceType:     k,
			Count:          g.count(),
			UniqueBrowsers: g.distinct(func(e *domain.Event) string { return e.Context.Browser.Name }),
		})
	}

	slices.SortFunc(rows, func(a, b DeviceStat) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.DeviceType, b.DeviceType))
	})
	return rows, nil
}

// LocationStats groups events by country.
func (s *MemoryStore) LocationStats(_ context.Context, w domain.Window, limit int) ([]LocationStat, error) {
	keys, groups := groupBy(s.inWindow(w, nil), func(e *domain.Event) string { return e.Context.Location.Country })

	rows := make([]LocationStat, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		rows = append(rows, LocationStat{
			Country:       k,
			Count:         g.count(),
			UniqueRegions: g.distinct(func(e *domain.Event) string { return e.Context.Location.Region }),
		})
	}

	slices.SortFunc(rows, func(a, b LocationStat) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Country, b.Country))
	})
	return truncate(rows, limit), nil
}

// Totals counts all events and identified users in the window.
func (s *MemoryStore) Totals(_ context.Context, w domain.Window) (Totals, error) {
	g := group{events: s.inWindow(w, nil)}
	return Totals{TotalEvents: g.count(), UniqueUsers: g.uniqueUsers()}, nil
}

// EndpointLatency ranks API routes by mean response time.
func (s *MemoryStore) EndpointLatency(_ context.Context, w domain.Window, limit int) ([]EndpointLatency, error) {
	events := s.inWindow(w, func(e *domain.Event) bool {
		p, ok := e.Payload.(domain.APICallPayload)
		return e.Kind == domain.KindAPICall && ok && p.Endpoint != "" && e.Timing.ResponseTimeMs != nil
	})
	keys, groups := groupBy(events, func(e *domain.Event) string {
		p, _ := e.Payload.(domain.APICallPayload)
		return p.Method + " " + p.Endpoint
	})

	rows := make([]EndpointLatency, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		p, _ := g.events[0].Payload.(domain.APICallPayload)
		values := millis(g.events, func(e *domain.Event) *int64 { return e.Timing.ResponseTimeMs })
		rows = append(rows, EndpointLatency{
			Method:   p.Method,
			Endpoint: p.Endpoint,
			Count:    g.count(),
			AvgMs:    mean(values),
			MaxMs:    slices.Max(values),
			P95Ms:    percentile(values, 0.95),
		})
	}

	slices.SortFunc(rows, func(a, b EndpointLatency) int {
		return cmp.Or(cmp.Compare(b.AvgMs, a.AvgMs), cmp.Compare(a.Endpoint, b.Endpoint), cmp.Compare(a.Method, b.Method))
	})
	return truncate(rows, limit), nil
}

// PageLoads ranks pages by mean load duration.
func (s *MemoryStore) PageLoads(_ context.Context, w domain.Window, limit int) ([]PageLoad, error) {
	events := s.inWindow(w, func(e *domain.Event) bool {
		return e.Kind == domain.KindPerformance && e.Timing.DurationMs != nil
	})
	keys, groups := groupBy(events, func(e *domain.Event) string { return e.Context.PageURL })

	rows := make([]PageLoad, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		values := millis(g.events, func(e *domain.Event) *int64 { return e.Timing.DurationMs })
		rows = append(rows, PageLoad{PageURL: k, Count: g.count(), AvgMs: mean(values), MaxMs: slices.Max(values)})
	}

	slices.SortFunc(rows, func(a, b PageLoad) int {
		return cmp.Or(cmp.Compare(b.AvgMs, a.AvgMs), cmp.Compare(a.PageURL, b.PageURL))
	})
	return truncate(rows, limit), nil
}

func millis(events []*domain.Event, field func(*domain.Event) *int64) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		if v := field(e); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func mean(values []int64) float64 {
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// percentile interpolates linearly between closest ranks, matching
// PostgreSQL's percentile_cont.
func percentile(values []int64, p float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[hi])-float64(sorted[lo]))*frac
}

func latest(events []*domain.Event) time.Time {
	var t time.Time
	for _, e := range events {
		if e.Timestamp.After(t) {
			t = e.Timestamp
		}
	}
	return t
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
