package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"investtracker/internal/engine"
	apperrors "investtracker/internal/errors"
)

// CycleRunner runs one evaluation cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*engine.CycleResult, error)
}

// PipelineHandler exposes the evaluation engine to trusted callers.
type PipelineHandler struct {
	runner CycleRunner
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(runner CycleRunner) *PipelineHandler {
	return &PipelineHandler{runner: runner}
}

// Evaluate handles running one evaluation cycle now.
// @Summary     Run evaluation cycle
// @Description Evaluate every active alert rule once. Fails with 409 while another cycle runs.
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} engine.CycleResult "Cycle report"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     409 {object} ErrorResponse "Cycle already running"
// @Failure     503 {object} ErrorResponse "Pipeline not configured"
// @Router      /pipeline/evaluate [post]
func (h *PipelineHandler) Evaluate(c *gin.Context) {
	result, err := h.runner.RunCycle(c.Request.Context())
	if err != nil {
		if errors.Is(err, engine.ErrCycleInProgress) {
			respondWithError(c, apperrors.ErrCycleInProgress)
			return
		}
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, result)
}
