package recorder

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/auth"
	"github.com/trailverse/analytics/internal/device"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/telemetry"
)

// SessionResolver returns the analytics session id for a request.
type SessionResolver interface {
	Resolve(c *gin.Context) string
}

// Recorder turns completed requests into analytics events.
type Recorder struct {
	queue      *Queue
	sessions   SessionResolver
	classifier device.Classifier
	log        logger.Logger
	skipBots   bool
	now        func() time.Time
}

// New creates a Recorder that enqueues onto queue.
func New(
	queue *Queue,
	sessions SessionResolver,
	classifier device.Classifier,
	cfg Config,
	log logger.Logger,
) *Recorder {
	return &Recorder{
		queue:      queue,
		sessions:   sessions,
		classifier: classifier,
		log:        log,
		skipBots:   cfg.SkipBots,
		now:        time.Now,
	}
}

// TrackAPICalls records one api_call event per request handled below it.
func (r *Recorder) TrackAPICalls() gin.HandlerFunc {
	return r.Track(domain.KindAPICall)
}

// Track records an event of kind once the handler has completed.
//
// The analytics service itself mounts only TrackAPICalls. Track is for host
// sites that embed the recorder in their own router, for example
//
//	parks.GET("/:parkCode", rec.Track(domain.KindParkView), showPark)
func (r *Recorder) Track(kind domain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// Resolved up front: the session cookie must be set before the
		// handler writes the response.
		sessionID := r.sessions.Resolve(c)

		c.Next()

		r.record(c, kind, sessionID, time.Since(start))
	}
}

func (r *Recorder) record(c *gin.Context, kind domain.Kind, sessionID string, elapsed time.Duration) {
	userAgent := c.Request.UserAgent()
	info := r.classifier.Classify(userAgent)
	if info.Bot && r.skipBots {
		r.queue.Discard(telemetry.DropBot)
		return
	}

	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	elapsedMs := elapsed.Milliseconds()

	draft := domain.Draft{
		Kind:      string(kind),
		UserID:    auth.UserID(c),
		SessionID: sessionID,
		Metadata:  requestMetadata(c, kind, route, elapsedMs),
		Content:   contentRefs(c, route),
		Context: domain.ClientContext{
			Device:    domain.Device{Type: info.DeviceType},
			Browser:   domain.Software{Name: info.Browser},
			OS:        domain.Software{Name: info.OS},
			UserAgent: userAgent,
			IPAddress: c.ClientIP(),
			Referrer:  c.Request.Referer(),
			PageURL:   c.Request.URL.RequestURI(),
		},
	}
	if kind == domain.KindAPICall {
		draft.Timing.ResponseTimeMs = &elapsedMs
	} else {
		draft.Timing.DurationMs = &elapsedMs
	}

	event, err := domain.NewEvent(draft, r.now())
	if err != nil {
		r.queue.Discard(telemetry.DropInvalid)
		r.log.Warn("Dropping request event",
			logger.Error(err),
			logger.String("event_kind", string(kind)),
			logger.String("route", route),
		)
		return
	}

	r.queue.Enqueue(telemetry.SourceMiddleware, event)
}

func requestMetadata(c *gin.Context, kind domain.Kind, route string, elapsedMs int64) map[string]any {
	switch kind {
	case domain.KindAPICall:
		return map[string]any{
			"endpoint":       route,
			"method":         c.Request.Method,
			"statusCode":     c.Writer.Status(),
			"responseTimeMs": elapsedMs,
		}
	case domain.KindPageView, domain.KindParkView, domain.KindBlogView, domain.KindEventView:
		return map[string]any{"path": c.Request.URL.Path}
	default:
		return nil
	}
}

// contentRefs reads content ids from path parameters. A bare :id counts as
// a blog id only on blog routes.
func contentRefs(c *gin.Context, route string) domain.ContentRefs {
	refs := domain.ContentRefs{
		ParkCode:       c.Param("parkCode"),
		BlogID:         c.Param("blogId"),
		EventID:        c.Param("eventId"),
		ReviewID:       c.Param("reviewId"),
		ConversationID: c.Param("conversationId"),
	}
	if refs.BlogID == "" && strings.Contains(route, "/blogs/") {
		refs.BlogID = c.Param("id")
	}
	return refs
}
