package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/routing"
	"github.com/jengzang/safety-backend-go/internal/service"
	"github.com/jengzang/safety-backend-go/pkg/response"
)

// RouteHandler handles HTTP requests for safer routes
type RouteHandler struct {
	service *service.RouteService
}

// NewRouteHandler creates a new route handler
func NewRouteHandler(service *service.RouteService) *RouteHandler {
	return &RouteHandler{service: service}
}

// CalculateRoute handles POST /api/v1/safety/routes
func (h *RouteHandler) CalculateRoute(c *gin.Context) {
	var req models.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.service.Calculate(c.Request.Context(), req)
	switch {
	case err == nil:
		response.Success(c, result)
	case errors.Is(err, routing.ErrInvalidCoordinates), errors.Is(err, service.ErrInvalidParameter):
		response.BadRequest(c, "Invalid coordinates", err)
	case errors.Is(err, routing.ErrRouteNotFound):
		log.Printf("[Routing] No route: %v", err)
		response.NotFound(c, "Route not found", err)
	default:
		response.InternalError(c, "Failed to calculate route", err)
	}
}
