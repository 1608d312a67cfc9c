package input

import (
	"context"
	"time"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
)

// UIActions is the surface offered to page adapters. Expected failures come
// back as typed errors (ElementNotFoundError, ActionError) or as a timed-out
// WaitOutcome; malformed input yields a ProgrammerError without touching the page.
type UIActions interface {
	Resolve(ctx context.Context, page output.PagePort, q entity.ElementQuery, deadline time.Duration) (entity.ResolvedElement, error)
	Act(ctx context.Context, page output.PagePort, q entity.ElementQuery, spec entity.ActionSpec) (entity.ActionResult, error)
	WaitUntil(ctx context.Context, cond entity.WaitCondition) entity.WaitOutcome
	ClickForNewPage(ctx context.Context, page output.PagePort, q entity.ElementQuery, wait time.Duration) (output.PagePort, error)
}
