package rest

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"yqhp/distcalc/pkg/types"
)

// healthCheck handles GET /health
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// listWorkers handles GET /api/v1/workers
func (s *Server) listWorkers(c *fiber.Ctx) error {
	workers := s.coordinator.Workers()

	alive := 0
	for _, w := range workers {
		if w.Alive {
			alive++
		}
	}

	return c.JSON(WorkersResponse{
		Workers: workers,
		Total:   len(workers),
		Alive:   alive,
	})
}

// getStats handles GET /api/v1/stats
func (s *Server) getStats(c *fiber.Ctx) error {
	return c.JSON(StatsResponse{StatsSnapshot: s.coordinator.Stats()})
}

// runDiscovery handles POST /api/v1/discovery
func (s *Server) runDiscovery(c *fiber.Ctx) error {
	ctx, cancel := s.operationContext(c)
	defer cancel()

	n, err := s.coordinator.Refresh(ctx)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error:   "discovery_failed",
			Message: err.Error(),
		})
	}

	return c.JSON(DiscoveryResponse{Workers: n})
}

// integrate handles POST /api/v1/integrate
func (s *Server) integrate(c *fiber.Ctx) error {
	var req IntegrateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}

	ctx, cancel := s.operationContext(c)
	defer cancel()

	start := time.Now()
	result, err := s.coordinator.ExecuteTask(ctx, req.Lower, req.Upper)
	if err != nil {
		return s.operationError(c, "integration", err)
	}

	return c.JSON(IntegrateResponse{
		Lower:     req.Lower,
		Upper:     req.Upper,
		Result:    result,
		ElapsedMs: time.Since(start).Milliseconds(),
	})
}

// kill handles POST /api/v1/kill
func (s *Server) kill(c *fiber.Ctx) error {
	var req KillRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if req.Count < 0 || req.Sleep < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "count and sleep must not be negative",
		})
	}

	ctx, cancel := s.operationContext(c)
	defer cancel()

	killed, err := s.coordinator.Kill(ctx, req.Count, req.Sleep)
	if err != nil {
		return s.operationError(c, "kill", err)
	}

	return c.JSON(KillResponse{Requested: req.Count, Killed: killed})
}

func (s *Server) operationError(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidBounds):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("operation timed out", zap.String("operation", op), zap.Duration("timeout", s.config.OperationTimeout))
		return c.Status(fiber.StatusGatewayTimeout).JSON(ErrorResponse{
			Error:   "timeout",
			Message: op + " did not finish in time; check that live workers are registered",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   op + "_failed",
			Message: err.Error(),
		})
	}
}
