// Package ingest accepts batches of client-side events. Ingestion is best
// effort: invalid events are dropped one at a time and the caller is never
// told which ones.
package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/device"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/telemetry"
)

// DefaultMaxBatchSize caps the events taken from one request.
const DefaultMaxBatchSize = 100

// Config configures batch ingestion.
type Config struct {
	MaxBatchSize       int `env:"ANALYTICS_INGEST_MAX_BATCH_SIZE"  yaml:"max_batch_size"`
	RateLimitPerMinute int `env:"ANALYTICS_INGEST_RATE_PER_MINUTE" yaml:"rate_limit_per_minute"`
	RateLimitBurst     int `env:"ANALYTICS_INGEST_RATE_BURST"      yaml:"rate_limit_burst"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 120
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 20
	}
}

// Enqueuer is the write side of the recorder queue.
type Enqueuer interface {
	Enqueue(source string, event domain.Event) bool
	Discard(reason string)
}

// ClientEvent is one element of a batch as sent by the browser.
type ClientEvent struct {
	EventKind     string         `json:"eventKind"`
	EventType     string         `json:"eventType"`
	EventCategory string         `json:"eventCategory"`
	UserID        string         `json:"userId"`
	SessionID     string         `json:"sessionId"`
	Timestamp     *time.Time     `json:"timestamp"`
	Metadata      map[string]any `json:"metadata"`

	ParkCode       string `json:"parkCode"`
	BlogID         string `json:"blogId"`
	EventID        string `json:"eventId"`
	ReviewID       string `json:"reviewId"`
	ConversationID string `json:"conversationId"`

	Duration     *int64 `json:"duration"`
	ResponseTime *int64 `json:"responseTime"`

	ErrorMessage string `json:"errorMessage"`
	ErrorStack   string `json:"errorStack"`
	ErrorCode    string `json:"errorCode"`

	Device    domain.Device   `json:"device"`
	Browser   domain.Software `json:"browser"`
	OS        domain.Software `json:"os"`
	Location  domain.Location `json:"location"`
	Referrer  string          `json:"referrer"`
	PageURL   string          `json:"pageUrl"`
	PageTitle string          `json:"pageTitle"`
}

// kind prefers eventKind and falls back to the older eventType key.
func (e *ClientEvent) kind() string {
	if k := strings.TrimSpace(e.EventKind); k != "" {
		return k
	}
	return e.EventType
}

// Batch is a decoded request envelope plus what the server knows about
// the caller.
type Batch struct {
	Events    []json.RawMessage
	SessionID string
	UserID    string

	ResolvedSessionID string
	ClaimsUserID      string
	IPAddress         string
	UserAgent         string
}

// Result summarises what happened to a batch. It is logged, never returned
// to the client.
type Result struct {
	Accepted int
	Invalid  int
	Dropped  int
}

// Service validates client events and enqueues them for writing.
type Service struct {
	queue      Enqueuer
	classifier device.Classifier
	log        logger.Logger
	maxBatch   int
	now        func() time.Time
}

// NewService creates a Service.
func NewService(queue Enqueuer, classifier device.Classifier, cfg Config, log logger.Logger) *Service {
	cfg.SetDefaults()
	return &Service{
		queue:      queue,
		classifier: classifier,
		log:        log,
		maxBatch:   cfg.MaxBatchSize,
		now:        time.Now,
	}
}

// Ingest processes every event in b independently.
func (s *Service) Ingest(b Batch) Result {
	var res Result

	events := b.Events
	if over := len(events) - s.maxBatch; over > 0 {
		for range over {
			s.queue.Discard(telemetry.DropBatchCap)
		}
		res.Dropped += over
		s.log.Warn("Batch exceeds size cap, dropping extra events",
			logger.Int("received", len(events)),
			logger.Int("max_batch_size", s.maxBatch),
		)
		events = events[:s.maxBatch]
	}

	var info *device.Info
	now := s.now()

	for i, raw := range events {
		var ce ClientEvent
		if err := json.Unmarshal(raw, &ce); err != nil {
			s.reject(&res, i, "", err)
			continue
		}

		if info == nil && needsClassification(&ce) {
			classified := s.classifier.Classify(b.UserAgent)
			info = &classified
		}

		event, err := domain.NewEvent(s.draft(&ce, b, info), now)
		if err != nil {
			s.reject(&res, i, ce.kind(), err)
			continue
		}

		if s.queue.Enqueue(telemetry.SourceIngest, event) {
			res.Accepted++
		} else {
			res.Dropped++
		}
	}

	return res
}

func (s *Service) reject(res *Result, index int, kind string, err error) {
	res.Invalid++
	s.queue.Discard(telemetry.DropInvalid)
	s.log.Warn("Rejected client event",
		logger.Int("index", index),
		logger.String("event_kind", kind),
		logger.Error(err),
	)
}

func needsClassification(ce *ClientEvent) bool {
	return ce.Device.Type == "" || ce.Browser.Name == "" || ce.OS.Name == ""
}

func (s *Service) draft(ce *ClientEvent, b Batch, info *device.Info) domain.Draft {
	d := domain.Draft{
		Kind:      ce.kind(),
		Category:  ce.EventCategory,
		UserID:    firstNonEmpty(ce.UserID, b.UserID, b.ClaimsUserID),
		SessionID: firstNonEmpty(ce.SessionID, b.SessionID, b.ResolvedSessionID),
		Metadata:  ce.Metadata,
		Content: domain.ContentRefs{
			ParkCode:       ce.ParkCode,
			BlogID:         ce.BlogID,
			EventID:        ce.EventID,
			ReviewID:       ce.ReviewID,
			ConversationID: ce.ConversationID,
		},
		Timing: domain.Timing{DurationMs: ce.Duration, ResponseTimeMs: ce.ResponseTime},
		Error: domain.ErrorDetail{
			Message: ce.ErrorMessage,
			Stack:   ce.ErrorStack,
			Code:    ce.ErrorCode,
		},
		Context: domain.ClientContext{
			Device:    ce.Device,
			Browser:   ce.Browser,
			OS:        ce.OS,
			Location:  ce.Location,
			UserAgent: b.UserAgent,
			IPAddress: b.IPAddress,
			Referrer:  ce.Referrer,
			PageURL:   ce.PageURL,
			PageTitle: ce.PageTitle,
		},
	}
	if ce.Timestamp != nil {
		d.Timestamp = *ce.Timestamp
	}

	if info != nil {
		if d.Context.Device.Type == "" {
			d.Context.Device.Type = info.DeviceType
		}
		if d.Context.Browser.Name == "" {
			d.Context.Browser.Name = info.Browser
		}
		if d.Context.OS.Name == "" {
			d.Context.OS.Name = info.OS
		}
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
