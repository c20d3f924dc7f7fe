package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/config"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/handler"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/middleware"
)

// SetupRoutes configures all API routes.
func SetupRoutes(
	router *gin.Engine,
	analytics *handler.AnalyticsHandler,
	experiments *handler.ExperimentsHandler,
	health *handler.HealthHandler,
	cfg *config.Config,
) {
	router.GET("/health", health.HealthCheck)

	rateLimitWindow := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second

	// Public ingestion and catalog routes, bot-filtered and rate-limited.
	public := router.Group("/api")
	public.Use(middleware.BotFilter())
	public.Use(middleware.RateLimiter(cfg.RateLimit.MaxEventsPerMinute, rateLimitWindow))
	{
		public.POST("/analytics/track", analytics.TrackEvent)
		public.POST("/analytics/batch", analytics.TrackBatch)
		public.GET("/experiments/active", experiments.Active)
		public.POST("/experiments/convert", experiments.Convert)
	}

	// Admin management surface.
	admin := router.Group("/api/admin")
	admin.Use(middleware.AdminAuth(cfg.Service.AdminToken))
	{
		admin.GET("/experiments", experiments.AdminList)
		admin.POST("/experiments", experiments.AdminCreate)
		admin.PATCH("/experiments/:id", experiments.AdminUpdate)
		admin.GET("/analytics/summary", experiments.AdminSummary)
		admin.GET("/analytics/events", experiments.AdminEvents)
	}
}
