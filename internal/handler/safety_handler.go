package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/service"
	"github.com/jengzang/safety-backend-go/pkg/response"
)

// SafetyHandler handles HTTP requests for cell scores and their summaries
type SafetyHandler struct {
	scores   *service.ScoreService
	heatmap  *service.HeatmapService
	contexts *service.ContextService
	alerts   *service.AlertService
}

// NewSafetyHandler creates a new safety handler
func NewSafetyHandler(scores *service.ScoreService, heatmap *service.HeatmapService, contexts *service.ContextService, alerts *service.AlertService) *SafetyHandler {
	return &SafetyHandler{scores: scores, heatmap: heatmap, contexts: contexts, alerts: alerts}
}

// GetScore handles GET /api/v1/safety/score/:cellId
func (h *SafetyHandler) GetScore(c *gin.Context) {
	score, err := h.scores.GetScore(c.Request.Context(), c.Param("cellId"))
	if err != nil {
		serviceError(c, "Failed to get score", err)
		return
	}
	if score == nil {
		response.NotFound(c, "No score for cell")
		return
	}

	response.Success(c, score)
}

// GetSnapshot handles GET /api/v1/safety/snapshot?lat=&lng=
func (h *SafetyHandler) GetSnapshot(c *gin.Context) {
	var q models.PointQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Missing lat/lng parameters", err)
		return
	}

	snapshot, err := h.scores.Snapshot(c.Request.Context(), *q.Lat, *q.Lng)
	if err != nil {
		serviceError(c, "Failed to get snapshot", err)
		return
	}

	response.Success(c, snapshot)
}

// GetHeatmap handles GET /api/v1/safety/heatmap
func (h *SafetyHandler) GetHeatmap(c *gin.Context) {
	var filter models.HeatmapFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	heatmap, err := h.heatmap.Cells(c.Request.Context(), filter)
	if err != nil {
		serviceError(c, "Failed to get heatmap", err)
		return
	}

	response.Success(c, heatmap)
}

// GetIncidentContext handles GET /api/v1/safety/context/incidents?lat=&lng=
func (h *SafetyHandler) GetIncidentContext(c *gin.Context) {
	var q models.PointQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Missing lat/lng parameters", err)
		return
	}

	incidents, err := h.contexts.Incidents(c.Request.Context(), *q.Lat, *q.Lng)
	if err != nil {
		serviceError(c, "Failed to get incident context", err)
		return
	}

	response.Success(c, incidents)
}

// GetEnvironmentContext handles GET /api/v1/safety/context/environment?lat=&lng=
func (h *SafetyHandler) GetEnvironmentContext(c *gin.Context) {
	var q models.PointQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Missing lat/lng parameters", err)
		return
	}

	env, err := h.contexts.Environment(c.Request.Context(), *q.Lat, *q.Lng)
	if err != nil {
		serviceError(c, "Failed to get environment context", err)
		return
	}

	response.Success(c, env)
}

// GetAlertContext handles GET /api/v1/safety/context/alerts?lat=&lng=
func (h *SafetyHandler) GetAlertContext(c *gin.Context) {
	var q models.PointQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Missing lat/lng parameters", err)
		return
	}

	alerts, err := h.contexts.Alerts(c.Request.Context(), *q.Lat, *q.Lng)
	if err != nil {
		serviceError(c, "Failed to get alert context", err)
		return
	}

	response.Success(c, alerts)
}

// GetAlerts handles GET /api/v1/safety/alerts?days=&limit=
func (h *SafetyHandler) GetAlerts(c *gin.Context) {
	var filter models.AlertFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	feed, err := h.alerts.Recent(c.Request.Context(), filter)
	if err != nil {
		serviceError(c, "Failed to get alerts", err)
		return
	}

	response.Success(c, feed)
}

// serviceError maps service input errors to 400 and everything else to 500
func serviceError(c *gin.Context, message string, err error) {
	if errors.Is(err, service.ErrInvalidParameter) {
		response.BadRequest(c, "Invalid parameters", err)
		return
	}
	response.Error(c, http.StatusInternalServerError, message, err)
}
