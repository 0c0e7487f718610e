package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentRefs points an event at the site content it concerns. Empty
// strings mean "no reference".
type ContentRefs struct {
	ParkCode       string `json:"parkCode,omitempty"`
	BlogID         string `json:"blogId,omitempty"`
	EventID        string `json:"eventId,omitempty"`
	ReviewID       string `json:"reviewId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Device describes the client hardware.
type Device struct {
	Type  string `json:"type,omitempty"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
}

// Software is a name/version pair used for browsers and operating systems.
type Software struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Location is a coarse geographic position.
type Location struct {
	Country   string   `json:"country,omitempty"`
	Region    string   `json:"region,omitempty"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lon,omitempty"`
}

// ClientContext is everything known about where an event came from.
type ClientContext struct {
	Device    Device   `json:"device"`
	Browser   Software `json:"browser"`
	OS        Software `json:"os"`
	Location  Location `json:"location"`
	UserAgent string   `json:"userAgent,omitempty"`
	IPAddress string   `json:"ipAddress,omitempty"`
	Referrer  string   `json:"referrer,omitempty"`
	PageURL   string   `json:"pageUrl,omitempty"`
	PageTitle string   `json:"pageTitle,omitempty"`
}

// Timing carries performance measurements in milliseconds.
type Timing struct {
	DurationMs     *int64 `json:"duration,omitempty"`
	ResponseTimeMs *int64 `json:"responseTime,omitempty"`
}

// ErrorDetail carries error fields for error events.
type ErrorDetail struct {
	Message string `json:"errorMessage,omitempty"`
	Stack   string `json:"errorStack,omitempty"`
	Code    string `json:"errorCode,omitempty"`
}

// Event is one immutable analytics fact. Build it with NewEvent.
type Event struct {
	ID        uuid.UUID
	Kind      Kind
	Category  Category
	UserID    string
	SessionID string
	Timestamp time.Time
	Payload   Payload
	Content   ContentRefs
	Timing    Timing
	Error     ErrorDetail
	Context   ClientContext
}

// Anonymous reports whether the event has no user.
func (e Event) Anonymous() bool {
	return e.UserID == ""
}

// Draft is the unvalidated input to NewEvent.
type Draft struct {
	Kind      string
	Category  string
	UserID    string
	SessionID string
	Timestamp time.Time
	Metadata  map[string]any
	Content   ContentRefs
	Timing    Timing
	Error     ErrorDetail
	Context   ClientContext
}

// NewEvent validates d and returns the event it describes. A zero timestamp
// is replaced with now, an empty category with the kind's default. Strings
// lose NUL bytes and have invalid UTF-8 replaced so the event is storable.
func NewEvent(d Draft, now time.Time) (Event, error) {
	kind, err := ParseKind(strings.TrimSpace(d.Kind))
	if err != nil {
		return Event{}, err
	}

	category := DefaultCategory(kind)
	if c := strings.TrimSpace(d.Category); c != "" {
		category, err = ParseCategory(c)
		if err != nil {
			return Event{}, err
		}
	}

	sessionID := strings.TrimSpace(cleanText(d.SessionID))
	if sessionID == "" {
		return Event{}, ErrMissingSession
	}

	payload, err := DecodePayload(kind, cleanMap(d.Metadata))
	if err != nil {
		return Event{}, fmt.Errorf("%s: %w", kind, err)
	}

	ts := d.Timestamp
	if ts.IsZero() {
		ts = now
	}

	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		Category:  category,
		UserID:    strings.TrimSpace(cleanText(d.UserID)),
		SessionID: sessionID,
		Timestamp: ts.UTC(),
		Payload:   payload,
		Content:   d.Content.clean(),
		Timing:    d.Timing,
		Error:     d.Error.clean(),
		Context:   d.Context.clean(),
	}, nil
}
