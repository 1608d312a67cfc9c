package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
)

const (
	defaultSettle        = 100 * time.Millisecond
	maxSettle            = time.Second
	defaultActionTimeout = 10 * time.Second

	// Revalidate names the attempt recorded when the element went stale
	// between resolution and the first method.
	Revalidate entity.Method = "revalidate"
)

type Config struct {
	Settle        time.Duration
	ActionTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Settle: defaultSettle, ActionTimeout: defaultActionTimeout}
}

type Resolver interface {
	Resolve(ctx context.Context, page output.PagePort, q entity.ElementQuery, deadline time.Duration) (entity.ResolvedElement, error)
}

// UseCase performs actions on resolved elements, walking the primary method
// and its fallbacks in order until one succeeds.
type UseCase struct {
	resolver Resolver
	methods  output.MethodRegistry
	logger   output.LoggerPort
	settle   time.Duration
	timeout  time.Duration
}

func New(resolver Resolver, methods output.MethodRegistry, cfg Config, logger output.LoggerPort) *UseCase {
	settle := cfg.Settle
	if settle <= 0 {
		settle = defaultSettle
	}
	timeout := cfg.ActionTimeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	return &UseCase{
		resolver: resolver,
		methods:  methods,
		logger:   logger,
		settle:   clampSettle(settle),
		timeout:  timeout,
	}
}

func (uc *UseCase) ActionTimeout() time.Duration {
	return uc.timeout
}

// Perform runs spec against an already resolved element.
func (uc *UseCase) Perform(ctx context.Context, page output.PagePort, spec entity.ActionSpec, el entity.ResolvedElement) (entity.ActionResult, error) {
	start := time.Now()
	if err := uc.validate(spec); err != nil {
		return entity.ActionResult{}, err
	}

	result := entity.ActionResult{Kind: spec.Kind, Element: el, MethodIndex: -1}

	if err := uc.revalidate(ctx, page, el.Handle); err != nil {
		result.Attempts = append(result.Attempts, entity.Attempt{Method: Revalidate, Err: err})
		result.Elapsed = time.Since(start)
		uc.logger.Debug("Element went stale before action", "query", el.Query, "action", spec.Kind, "error", err)
		return result, &entity.ActionError{Kind: spec.Kind, Query: el.Query, Attempts: result.Attempts}
	}

	for i, name := range spec.Methods() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Attempts = append(result.Attempts, entity.Attempt{Method: name, Err: ctxErr})
			break
		}

		out, err := uc.apply(ctx, page, el.Handle, spec, name)
		result.Attempts = append(result.Attempts, entity.Attempt{Method: name, Err: err})
		if err != nil {
			uc.logger.Debug("Action method failed",
				"query", el.Query,
				"action", spec.Kind,
				"method", name,
				"index", i,
				"error", err,
			)
			continue
		}

		result.Method = name
		result.MethodIndex = i
		result.Output = out
		if i > 0 {
			uc.logger.Info("Action succeeded with fallback", "query", el.Query, "action", spec.Kind, "method", name, "index", i)
		}
		if spec.Kind.Settles() {
			uc.pause(ctx, uc.settleFor(spec))
		}
		result.Elapsed = time.Since(start)
		return result, nil
	}

	result.Elapsed = time.Since(start)
	return result, &entity.ActionError{Kind: spec.Kind, Query: el.Query, Attempts: result.Attempts}
}

// Act resolves q and performs spec on it within spec.Timeout, or the
// configured action timeout when unset. An element that goes stale between
// resolution and action is resolved once more while time remains.
func (uc *UseCase) Act(ctx context.Context, page output.PagePort, q entity.ElementQuery, spec entity.ActionSpec) (entity.ActionResult, error) {
	if err := q.Validate(); err != nil {
		return entity.ActionResult{}, err
	}
	if err := uc.validate(spec); err != nil {
		return entity.ActionResult{}, err
	}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = uc.timeout
	}
	start := time.Now()
	deadline := start.Add(timeout)

	var (
		result entity.ActionResult
		err    error
	)
	for attempt := 0; attempt < 2; attempt++ {
		var el entity.ResolvedElement
		el, err = uc.resolver.Resolve(ctx, page, q, time.Until(deadline))
		if err != nil {
			return entity.ActionResult{Kind: spec.Kind, MethodIndex: -1, Elapsed: time.Since(start)}, err
		}

		actCtx, cancel := context.WithDeadline(ctx, deadline)
		result, err = uc.Perform(actCtx, page, spec, el)
		cancel()
		if err == nil || !stale(result) || time.Until(deadline) <= 0 {
			break
		}
	}
	result.Elapsed = time.Since(start)
	return result, err
}

// ClickForNewPage clicks q and waits up to wait for a page opened by that
// click. The new page is returned to the caller; page itself is untouched.
// No page within the bound yields ErrNoNewPage.
func (uc *UseCase) ClickForNewPage(ctx context.Context, page output.PagePort, q entity.ElementQuery, wait time.Duration) (output.PagePort, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	opened := make(chan output.PagePort, 1)
	unsubscribe := page.OnNewPageOpened(func(p output.PagePort) {
		select {
		case opened <- p:
		default:
		}
	})
	defer unsubscribe()

	if _, err := uc.Act(ctx, page, q, entity.Click().WithSettle(-1)); err != nil {
		return nil, err
	}

	select {
	case p := <-opened:
		return p, nil
	default:
	}
	if wait <= 0 {
		return nil, fmt.Errorf("%w after clicking %q", entity.ErrNoNewPage, q.Label())
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case p := <-opened:
		uc.logger.Debug("New page opened", "query", q.Label())
		return p, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after clicking %q within %s", entity.ErrNoNewPage, q.Label(), wait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (uc *UseCase) validate(spec entity.ActionSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	for _, name := range spec.Methods() {
		if _, ok := uc.methods.Get(name); !ok {
			return entity.NewProgrammerError("method %q is not registered (have %v)", name, uc.methods.Names())
		}
	}
	return nil
}

func (uc *UseCase) revalidate(ctx context.Context, page output.PagePort, el entity.ElementHandle) error {
	attached, err := page.IsAttached(ctx, el)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrStaleElement, err)
	}
	if !attached {
		return entity.ErrStaleElement
	}
	visible, err := page.IsVisible(ctx, el)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrStaleElement, err)
	}
	if !visible {
		return entity.ErrStaleElement
	}
	return nil
}

func (uc *UseCase) apply(ctx context.Context, page output.PagePort, el entity.ElementHandle, spec entity.ActionSpec, name entity.Method) (entity.ActionOutput, error) {
	m, _ := uc.methods.Get(name)
	if !m.Supports(spec.Kind) {
		return entity.ActionOutput{}, fmt.Errorf("%w: %s cannot %s", entity.ErrMethodUnsupported, name, spec.Kind)
	}

	out, err := m.Apply(ctx, page, el, spec)
	if err != nil {
		return out, err
	}

	if spec.Kind == entity.ActionCheck || spec.Kind == entity.ActionUncheck {
		want := spec.Kind == entity.ActionCheck
		checked, err := page.IsChecked(ctx, el)
		if err != nil {
			return out, fmt.Errorf("verify checked state: %w", err)
		}
		if checked != want {
			return out, fmt.Errorf("%s reported success but checked=%t", name, checked)
		}
	}
	return out, nil
}

func (uc *UseCase) settleFor(spec entity.ActionSpec) time.Duration {
	switch {
	case spec.Settle < 0:
		return 0
	case spec.Settle == 0:
		return uc.settle
	default:
		return clampSettle(spec.Settle)
	}
}

// pause waits d or until ctx is done. Settling never fails an action.
func (uc *UseCase) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func clampSettle(d time.Duration) time.Duration {
	if d > maxSettle {
		return maxSettle
	}
	return d
}

func stale(result entity.ActionResult) bool {
	return len(result.Attempts) == 1 &&
		result.Attempts[0].Method == Revalidate &&
		errors.Is(result.Attempts[0].Err, entity.ErrStaleElement)
}
