// Package handler implements the HTTP handlers for analytics ingestion and
// the experiments catalog.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/middleware"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/storage"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/logger"
)

// maxEventTypeLen mirrors the event_type column width.
const maxEventTypeLen = 50

// AnalyticsHandler accepts single events and batches and feeds them into the
// write buffer.
type AnalyticsHandler struct {
	buffer       *storage.Buffer
	logger       logger.Logger
	maxBatchSize int
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(buffer *storage.Buffer, log logger.Logger, maxBatchSize int) *AnalyticsHandler {
	return &AnalyticsHandler{
		buffer:       buffer,
		logger:       log,
		maxBatchSize: maxBatchSize,
	}
}

type batchPayload struct {
	Events []events.AnalyticsEvent `json:"events"`
}

// TrackEvent handles POST /api/analytics/track: one event per request.
func (h *AnalyticsHandler) TrackEvent(c *gin.Context) {
	var evt events.AnalyticsEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid event data"})
		return
	}

	if err := validateEvent(evt); err != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err})
		return
	}

	if middleware.SkipTracking(c) {
		c.JSON(http.StatusCreated, gin.H{"success": true})
		return
	}

	h.enqueue(c, evt)
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// TrackBatch handles POST /api/analytics/batch: many events, one request.
// Invalid events are skipped; the response reports how many were accepted.
func (h *AnalyticsHandler) TrackBatch(c *gin.Context) {
	var payload batchPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid batch data"})
		return
	}

	if len(payload.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "empty batch"})
		return
	}
	if len(payload.Events) > h.maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "batch too large"})
		return
	}

	if middleware.SkipTracking(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "tracked": 0})
		return
	}

	tracked := 0
	for _, evt := range payload.Events {
		if msg := validateEvent(evt); msg != "" {
			continue
		}
		if h.enqueue(c, evt) {
			tracked++
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "tracked": tracked})
}

// enqueue stamps request metadata and sends the event into the buffer.
// A full buffer drops the event with a warning; ingestion must not block.
func (h *AnalyticsHandler) enqueue(c *gin.Context, evt events.AnalyticsEvent) bool {
	if evt.UserAgent == "" {
		evt.UserAgent = c.Request.UserAgent()
	}
	if evt.Referrer == "" {
		evt.Referrer = c.Request.Referer()
	}

	if !h.buffer.Send(evt) {
		h.logger.Warn("Analytics buffer full, dropping event",
			logger.String("event_type", string(evt.EventType)),
		)
		return false
	}
	return true
}

// validateEvent returns a human-readable problem, or "" when the event is
// acceptable.
func validateEvent(evt events.AnalyticsEvent) string {
	if evt.EventType == "" {
		return "event_type is required"
	}
	if len(evt.EventType) > maxEventTypeLen {
		return "event_type too long"
	}
	return ""
}
