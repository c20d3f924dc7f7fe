package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	version string
	pingDB  func() error
}

// NewHealthHandler creates a HealthHandler reporting the given version.
// pingDB may be nil when no database check is wanted.
func NewHealthHandler(version string, pingDB func() error) *HealthHandler {
	return &HealthHandler{version: version, pingDB: pingDB}
}

// HealthCheck returns service health status.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK

	if h.pingDB != nil {
		if err := h.pingDB(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
