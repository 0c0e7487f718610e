package domain

import (
	"fmt"
	"time"
)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Previous returns the equal-length window ending where w starts.
func (w Window) Previous() Window {
	return Window{Start: w.Start.Add(-w.Duration()), End: w.Start}
}

// Period is a named dashboard look-back.
type Period string

const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"

	// DefaultPeriod is used when a request names no period.
	DefaultPeriod = Period7d
)

const day = 24 * time.Hour

var periodDurations = map[Period]time.Duration{
	Period24h: day,
	Period7d:  7 * day,
	Period30d: 30 * day,
	Period90d: 90 * day,
}

// ParsePeriod validates s. An empty string yields DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return DefaultPeriod, nil
	}
	p := Period(s)
	if _, ok := periodDurations[p]; !ok {
		return "", fmt.Errorf("%w: %q (want 24h, 7d, 30d or 90d)", ErrInvalidPeriod, s)
	}
	return p, nil
}

// Duration returns the length of the period.
func (p Period) Duration() time.Duration {
	return periodDurations[p]
}

// Window returns [now - d, now).
func (p Period) Window(now time.Time) Window {
	now = now.UTC()
	return Window{Start: now.Add(-p.Duration()), End: now}
}
