package output

import (
	"context"

	"resilient-ui/internal/domain/entity"
)

// ActionMethod is one execution strategy for actions, such as a trusted
// click or a synthetic DOM event.
type ActionMethod interface {
	Name() entity.Method
	Supports(kind entity.ActionKind) bool
	Apply(ctx context.Context, page PagePort, el entity.ElementHandle, spec entity.ActionSpec) (entity.ActionOutput, error)
}

type MethodRegistry interface {
	Register(method ActionMethod)
	Get(name entity.Method) (ActionMethod, bool)
	Names() []entity.Method
}
