package ingest

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/auth"
)

// errEmptyBatch is the only client error the endpoint returns.
const errEmptyBatch = "events must be a non-empty array"

// SessionResolver returns the analytics session id for a request.
type SessionResolver interface {
	Resolve(c *gin.Context) string
}

// Handler serves POST /api/analytics/track.
type Handler struct {
	service  *Service
	sessions SessionResolver
	log      logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(service *Service, sessions SessionResolver, log logger.Logger) *Handler {
	return &Handler{service: service, sessions: sessions, log: log}
}

// Track accepts a batch of client events. Any well-formed envelope gets
// 200 {success:true}, whatever happens to the individual events.
func (h *Handler) Track(c *gin.Context) {
	var envelope map[string]json.RawMessage
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": errEmptyBatch})
		return
	}

	var events []json.RawMessage
	if err := json.Unmarshal(envelope["events"], &events); err != nil || len(events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": errEmptyBatch})
		return
	}

	result := h.service.Ingest(Batch{
		Events:            events,
		SessionID:         optionalString(envelope["sessionId"]),
		UserID:            optionalString(envelope["userId"]),
		ResolvedSessionID: h.sessions.Resolve(c),
		ClaimsUserID:      auth.UserID(c),
		IPAddress:         c.ClientIP(),
		UserAgent:         c.Request.UserAgent(),
	})

	h.log.Debug("Ingested client events",
		logger.Int("received", len(events)),
		logger.Int("accepted", result.Accepted),
		logger.Int("invalid", result.Invalid),
		logger.Int("dropped", result.Dropped),
	)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// optionalString decodes a JSON string, treating anything else as absent.
func optionalString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
