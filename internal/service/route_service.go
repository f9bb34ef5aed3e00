package service

import (
	"context"
	"fmt"

	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/routing"
)

// RouteService computes safer walking routes
type RouteService struct {
	engine *routing.Engine
}

// NewRouteService creates a new route service
func NewRouteService(engine *routing.Engine) *RouteService {
	return &RouteService{engine: engine}
}

// Calculate computes the safer route for a request
func (s *RouteService) Calculate(ctx context.Context, req models.RouteRequest) (*models.RouteResult, error) {
	if req.Start == nil || req.End == nil {
		return nil, fmt.Errorf("%w: start and end are required", ErrInvalidParameter)
	}
	return s.engine.CalculateSaferRoute(ctx, *req.Start, *req.End)
}
