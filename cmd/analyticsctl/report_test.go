package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trailverse/analytics/internal/analytics"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
)

func TestRenderDashboard(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	name := "Ranger Rick"
	code := "E_TIMEOUT"

	payload := &analytics.DashboardPayload{
		Period:    domain.Period7d,
		DateRange: domain.Period7d.Window(end),
		Overview: analytics.Overview{
			TotalEvents:          120,
			GrowthRate:           20,
			UniqueUsers:          8,
			AverageEventsPerUser: 15,
		},
		EventCounts: []storage.EventCount{{EventKind: "park_view", Count: 90, UniqueUsers: 7}},
		TopUsers: []analytics.EngagedUser{{
			UserEngagement: storage.UserEngagement{UserID: "u-1", TotalEvents: 40, UniqueSessions: 3},
			Name:           &name,
		}},
		PopularContent: analytics.PopularContent{
			Parks: []storage.ContentPopularity{{ContentID: "yose", ViewCount: 50, UniqueUsers: 6}},
		},
		TopErrors: []storage.ErrorGroup{{ErrorCode: &code, Count: 2, LastOccurrence: end}},
	}

	var buf bytes.Buffer
	renderDashboard(&buf, payload)
	out := buf.String()

	assert.Contains(t, out, "Period 7d: 2026-06-27T12:00:00Z to 2026-07-04T12:00:00Z")
	assert.Contains(t, out, "+20.00")
	assert.Contains(t, out, "park_view")
	assert.Contains(t, out, "Ranger Rick")
	assert.Contains(t, out, "yose")
	assert.Contains(t, out, "E_TIMEOUT")
	assert.Contains(t, out, "Popular Blogs: no data")
	assert.Contains(t, out, "Top Searches: no data")
	assert.Contains(t, out, "Locations: no data")
}

func TestDeref(t *testing.T) {
	t.Parallel()

	s := "x"
	assert.Equal(t, "x", deref(&s))
	assert.Equal(t, "-", deref(nil))
}
