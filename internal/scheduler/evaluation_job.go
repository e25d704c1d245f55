package scheduler

import (
	"context"
	"errors"
	"fmt"

	"investtracker/internal/engine"
)

// CycleRunner runs one evaluation cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*engine.CycleResult, error)
}

// EvaluationJob runs the alert evaluation cycle.
type EvaluationJob struct {
	runner CycleRunner
}

// NewEvaluationJob creates the job that drives runner.
func NewEvaluationJob(runner CycleRunner) *EvaluationJob {
	return &EvaluationJob{runner: runner}
}

// Name implements Job.
func (j *EvaluationJob) Name() string { return "alert_evaluation" }

// Run implements Job. A cycle already in progress, e.g. one started
// through the pipeline endpoint, is reported as ErrSkipped.
func (j *EvaluationJob) Run(ctx context.Context) error {
	_, err := j.runner.RunCycle(ctx)
	if errors.Is(err, engine.ErrCycleInProgress) {
		return fmt.Errorf("%w: %w", ErrSkipped, err)
	}
	return err
}
