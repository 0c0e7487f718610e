package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailverse/analytics/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestNewEvent_AppliesDefaults(t *testing.T) {
	t.Parallel()

	event, err := domain.NewEvent(domain.Draft{
		Kind:      "park_view",
		SessionID: "sess-1",
		Content:   domain.ContentRefs{ParkCode: "yose"},
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, domain.KindParkView, event.Kind)
	assert.Equal(t, domain.CategoryEngagement, event.Category)
	assert.Equal(t, testNow, event.Timestamp)
	assert.True(t, event.Anonymous())
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.IsType(t, domain.ViewPayload{}, event.Payload)
}

func TestNewEvent_ExplicitCategoryWins(t *testing.T) {
	t.Parallel()

	event, err := domain.NewEvent(domain.Draft{
		Kind:      "park_save",
		Category:  "business",
		SessionID: "sess-1",
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, domain.CategoryBusiness, event.Category)
}

func TestNewEvent_KeepsTimestampInUTC(t *testing.T) {
	t.Parallel()

	local := time.Date(2026, 3, 14, 8, 0, 0, 0, time.FixedZone("EDT", -4*3600))
	event, err := domain.NewEvent(domain.Draft{Kind: "page_view", SessionID: "s", Timestamp: local}, testNow)
	require.NoError(t, err)

	assert.Equal(t, time.UTC, event.Timestamp.Location())
	assert.True(t, local.Equal(event.Timestamp))
}

func TestNewEvent_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		draft domain.Draft
		want  error
	}{
		{
			name:  "unknown kind",
			draft: domain.Draft{Kind: "park_teleport", SessionID: "s"},
			want:  domain.ErrUnknownKind,
		},
		{
			name:  "unknown category",
			draft: domain.Draft{Kind: "page_view", Category: "anonymous", SessionID: "s"},
			want:  domain.ErrUnknownCategory,
		},
		{
			name:  "missing session",
			draft: domain.Draft{Kind: "page_view", SessionID: "  "},
			want:  domain.ErrMissingSession,
		},
		{
			name: "bad payload",
			draft: domain.Draft{
				Kind:      "search",
				SessionID: "s",
				Metadata:  map[string]any{"resultCount": "lots"},
			},
			want: domain.ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := domain.NewEvent(tt.draft, testNow)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNewEvent_CleansUnstorableText(t *testing.T) {
	t.Parallel()

	event, err := domain.NewEvent(domain.Draft{
		Kind:      "search",
		SessionID: "sess\x00-1",
		UserID:    "u\xff1",
		Metadata: map[string]any{
			"searchTerm": "half\x00dome",
			"tags":       []any{"a\x00", map[string]any{"k\x00": "v\xfe"}},
		},
		Content: domain.ContentRefs{ParkCode: "yo\x00se"},
		Error:   domain.ErrorDetail{Message: "bad\xc3"},
		Context: domain.ClientContext{
			UserAgent: "Mozilla\xff/5.0",
			PageTitle: "a\x00b",
			Browser:   domain.Software{Name: "Chr\x00ome"},
		},
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", event.SessionID)
	assert.Equal(t, "u\uFFFD1", event.UserID)
	assert.Equal(t, "yose", event.Content.ParkCode)
	assert.Equal(t, "bad\uFFFD", event.Error.Message)
	assert.Equal(t, "Mozilla\uFFFD/5.0", event.Context.UserAgent)
	assert.Equal(t, "ab", event.Context.PageTitle)
	assert.Equal(t, "Chrome", event.Context.Browser.Name)

	search, ok := event.Payload.(domain.SearchPayload)
	require.True(t, ok)
	assert.Equal(t, "halfdome", search.SearchTerm)
	assert.Equal(t, []any{"a", map[string]any{"k": "v\uFFFD"}}, search.Extra["tags"])
}

func TestDefaultCategory_CoversEveryKind(t *testing.T) {
	t.Parallel()

	for _, k := range domain.AllKinds() {
		assert.True(t, domain.DefaultCategory(k).IsValid(), "kind %s has no default category", k)
	}
}
