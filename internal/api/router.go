package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jengzang/safety-backend-go/internal/config"
	"github.com/jengzang/safety-backend-go/internal/handler"
	"github.com/jengzang/safety-backend-go/internal/middleware"
)

// Handlers groups the HTTP handlers served by the router
type Handlers struct {
	Safety *handler.SafetyHandler
	Route  *handler.RouteHandler
	Admin  *handler.AdminHandler
}

// SetupRouter builds the gin engine with all routes
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("safety-api"))
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Safety Backend API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	if cfg.RateLimit > 0 {
		api.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	{
		safety := api.Group("/safety")
		{
			safety.GET("/score/:cellId", h.Safety.GetScore)
			safety.GET("/snapshot", h.Safety.GetSnapshot)
			safety.GET("/heatmap", h.Safety.GetHeatmap)
			safety.GET("/context/incidents", h.Safety.GetIncidentContext)
			safety.GET("/context/environment", h.Safety.GetEnvironmentContext)
			safety.GET("/context/alerts", h.Safety.GetAlertContext)
			safety.GET("/alerts", h.Safety.GetAlerts)
			safety.POST("/routes", h.Route.CalculateRoute)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.RequireAuth(cfg.JWTSecret))
		{
			admin.POST("/aggregate", h.Admin.TriggerAggregation)
			admin.GET("/jobs/latest", h.Admin.GetLatestJob)
		}
	}

	return r
}
