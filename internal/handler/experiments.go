package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/storage"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/logger"
)

// Defaults for the admin read endpoints.
const (
	defaultSummaryWindow = 7 * 24 * time.Hour
	defaultRecentLimit   = 100
	maxRecentLimit       = 1000
)

// ExperimentsHandler serves the experiment catalog, conversion tracking, and
// the admin management surface.
type ExperimentsHandler struct {
	repo   *storage.ExperimentRepo
	buffer *storage.Buffer
	logger logger.Logger
}

// NewExperimentsHandler creates an ExperimentsHandler.
func NewExperimentsHandler(repo *storage.ExperimentRepo, buffer *storage.Buffer, log logger.Logger) *ExperimentsHandler {
	return &ExperimentsHandler{repo: repo, buffer: buffer, logger: log}
}

// Active handles GET /api/experiments/active. The SDK calls this at page
// load to fetch the catalog.
func (h *ExperimentsHandler) Active(c *gin.Context) {
	exps, err := h.repo.Active(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch active experiments", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to fetch experiments"})
		return
	}

	if exps == nil {
		exps = []events.Experiment{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": exps})
}

// Convert handles POST /api/experiments/convert: a conversion recorded as an
// experiment_conversion analytics event.
func (h *ExperimentsHandler) Convert(c *gin.Context) {
	var req events.ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid conversion data"})
		return
	}

	if req.ExperimentID == 0 || req.VariantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "experiment_id and variant_id are required"})
		return
	}

	evt := events.AnalyticsEvent{
		EventType: events.Conversion,
		EventData: map[string]any{
			"experiment_id":   req.ExperimentID,
			"variant_id":      req.VariantID,
			"conversion_type": req.ConversionType,
		},
		SessionID:    req.SessionID,
		VisitorID:    req.VisitorID,
		PageURL:      req.PageURL,
		UserAgent:    c.Request.UserAgent(),
		ExperimentID: req.ExperimentID,
		VariantID:    req.VariantID,
		Timestamp:    time.Now(),
	}

	if !h.buffer.Send(evt) {
		h.logger.Warn("Analytics buffer full, dropping conversion",
			logger.Int("experiment_id", req.ExperimentID),
		)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AdminList handles GET /api/admin/experiments. Unlike Active it returns
// inactive and out-of-window experiments too.
func (h *ExperimentsHandler) AdminList(c *gin.Context) {
	exps, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list experiments", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to fetch experiments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": exps})
}

// AdminCreate handles POST /api/admin/experiments.
func (h *ExperimentsHandler) AdminCreate(c *gin.Context) {
	var exp events.Experiment
	if err := c.ShouldBindJSON(&exp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid experiment data"})
		return
	}

	if msg := validateExperiment(exp); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
		return
	}

	created, err := h.repo.Create(c.Request.Context(), exp)
	if err != nil {
		h.logger.Error("Failed to create experiment", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to create experiment"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": created})
}

// AdminUpdate handles PATCH /api/admin/experiments/:id.
func (h *ExperimentsHandler) AdminUpdate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid experiment id"})
		return
	}

	var exp events.Experiment
	if err := c.ShouldBindJSON(&exp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid experiment data"})
		return
	}
	exp.ID = id

	if msg := validateExperiment(exp); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
		return
	}

	if err := h.repo.Update(c.Request.Context(), exp); err != nil {
		if errors.Is(err, storage.ErrExperimentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "experiment not found"})
			return
		}
		h.logger.Error("Failed to update experiment", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to update experiment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AdminSummary handles GET /api/admin/analytics/summary.
func (h *ExperimentsHandler) AdminSummary(c *gin.Context) {
	since := time.Now().Add(-defaultSummaryWindow)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid since timestamp"})
			return
		}
		since = parsed
	}

	summary, err := h.repo.Summary(c.Request.Context(), since)
	if err != nil {
		h.logger.Error("Failed to fetch analytics summary", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to fetch summary"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// AdminEvents handles GET /api/admin/analytics/events.
func (h *ExperimentsHandler) AdminEvents(c *gin.Context) {
	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRecentLimit {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid limit"})
			return
		}
		limit = parsed
	}

	recent, err := h.repo.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to fetch recent events", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to fetch events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": recent})
}

// validateExperiment checks the catalog invariants: a non-empty name and,
// for active experiments, a non-empty variant set with positive total
// weight.
func validateExperiment(exp events.Experiment) string {
	if exp.Name == "" {
		return "name is required"
	}
	if exp.IsActive {
		if len(exp.Variants) == 0 {
			return "active experiment needs at least one variant"
		}
		if events.TotalWeight(exp.Variants) <= 0 {
			return "variant weights must sum to a positive value"
		}
	}
	for _, v := range exp.Variants {
		if v.ID == "" {
			return "variant id is required"
		}
		if v.Weight < 0 {
			return "variant weight must not be negative"
		}
	}
	return ""
}
