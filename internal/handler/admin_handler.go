package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/safety-backend-go/internal/service"
	"github.com/jengzang/safety-backend-go/pkg/response"
)

// AdminHandler handles operator requests for batch jobs
type AdminHandler struct {
	aggregation *service.AggregationService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(aggregation *service.AggregationService) *AdminHandler {
	return &AdminHandler{aggregation: aggregation}
}

// TriggerAggregation handles POST /api/v1/admin/aggregate
func (h *AdminHandler) TriggerAggregation(c *gin.Context) {
	if err := h.aggregation.Start(c.Request.Context()); err != nil {
		if errors.Is(err, service.ErrJobRunning) {
			response.Conflict(c, "Aggregation already running")
			return
		}
		response.InternalError(c, "Failed to start aggregation", err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{
		Code:    0,
		Message: "aggregation started",
		Data:    gin.H{"running": true},
	})
}

// GetLatestJob handles GET /api/v1/admin/jobs/latest
func (h *AdminHandler) GetLatestJob(c *gin.Context) {
	run, err := h.aggregation.LatestRun(c.Request.Context())
	if err != nil {
		response.InternalError(c, "Failed to get latest job", err)
		return
	}
	if run == nil {
		response.NotFound(c, "No job runs recorded")
		return
	}

	response.Success(c, gin.H{
		"job":     run,
		"running": h.aggregation.Running(),
	})
}
