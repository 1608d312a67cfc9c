package input

import (
	"context"
	"time"

	"resilient-ui/internal/domain/entity"
)

type StepResult struct {
	Name    string
	Detail  string
	Elapsed time.Duration
	Err     error
}

type RunResult struct {
	Scenario string
	Steps    []StepResult
	Passed   int
	Elapsed  time.Duration
	Capture  string
}

func (r *RunResult) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

type ScenarioRunner interface {
	Run(ctx context.Context, sc *entity.Scenario) (*RunResult, error)
}
