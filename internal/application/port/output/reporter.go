package output

import (
	"context"
	"time"
)

type ReporterPort interface {
	ShowScenario(ctx context.Context, name string, steps int)
	ShowStepStart(ctx context.Context, index int, name, action string)
	ShowStepResult(ctx context.Context, index int, name, detail string, elapsed time.Duration, err error)
	ShowSummary(ctx context.Context, name string, passed, total int, elapsed time.Duration)
}
