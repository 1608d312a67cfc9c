package scenario

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"resilient-ui/internal/application/port/input"
	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/application/service"
	"resilient-ui/internal/domain/entity"
	"resilient-ui/internal/usecase/waiter"
)

var _ input.ScenarioRunner = (*UseCase)(nil)

const (
	defaultStepTimeout = 10 * time.Second
	maxDetailLen       = 120
)

// UI is what the runner needs from the action surface.
type UI interface {
	input.UIActions
	Visible(ctx context.Context, page output.PagePort, q entity.ElementQuery, deadline time.Duration) entity.WaitOutcome
	Hidden(ctx context.Context, page output.PagePort, q entity.ElementQuery, deadline time.Duration) entity.WaitOutcome
	OpenPanel(ctx context.Context, page output.PagePort, toggle, panel entity.ElementQuery, timeout time.Duration) (service.PanelState, error)
	AwaitResults(ctx context.Context, page output.PagePort, rows, noData entity.ElementQuery, policy service.EmptyResultPolicy, timeout time.Duration) (service.ResultState, error)
}

// UseCase runs scenario steps in order against one browser page, switching
// to pages opened by expect-new-page steps. It stops at the first failure.
type UseCase struct {
	ui          UI
	browser     output.BrowserPort
	reporter    output.ReporterPort
	capture     output.CapturePort
	logger      output.LoggerPort
	stepTimeout time.Duration
}

func New(
	ui UI,
	browser output.BrowserPort,
	reporter output.ReporterPort,
	capture output.CapturePort,
	logger output.LoggerPort,
	stepTimeout time.Duration,
) *UseCase {
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	return &UseCase{
		ui:          ui,
		browser:     browser,
		reporter:    reporter,
		capture:     capture,
		logger:      logger,
		stepTimeout: stepTimeout,
	}
}

func (uc *UseCase) Run(ctx context.Context, sc *entity.Scenario) (*input.RunResult, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	steps := sc.Steps
	if sc.URL != "" {
		steps = append([]entity.Step{{Name: "open " + sc.URL, Action: entity.StepNavigate, URL: sc.URL}}, steps...)
	}

	page, err := uc.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	opened := []output.PagePort{page}
	defer func() {
		for _, p := range opened {
			if err := p.Close(); err != nil {
				uc.logger.Debug("Failed to close page", "error", err)
			}
		}
	}()

	start := time.Now()
	result := &input.RunResult{Scenario: sc.Name}
	uc.reporter.ShowScenario(ctx, sc.Name, len(steps))
	uc.logger.Info("Scenario started", "scenario", sc.Name, "steps", len(steps))

	current := page
	for i, st := range steps {
		name := stepName(st, i)
		uc.reporter.ShowStepStart(ctx, i+1, name, string(st.Action))

		stepStart := time.Now()
		detail, next, err := uc.runStep(ctx, current, st)
		if next != nil {
			opened = append(opened, next)
			current = next
		}

		sr := input.StepResult{Name: name, Detail: truncate(detail), Elapsed: time.Since(stepStart), Err: err}
		result.Steps = append(result.Steps, sr)
		uc.reporter.ShowStepResult(ctx, i+1, name, sr.Detail, sr.Elapsed, err)

		if err != nil {
			uc.logger.Error("Step failed", "scenario", sc.Name, "step", name, "action", st.Action, "error", err)
			result.Capture = uc.captureFailure(ctx, current, name)
			break
		}
		uc.logger.Debug("Step passed", "step", name, "detail", sr.Detail, "elapsed", sr.Elapsed)
		result.Passed++
	}

	result.Elapsed = time.Since(start)
	uc.reporter.ShowSummary(ctx, sc.Name, result.Passed, len(steps), result.Elapsed)
	uc.logger.Info("Scenario finished", "scenario", sc.Name, "passed", result.Passed, "total", len(steps), "elapsed", result.Elapsed)
	return result, nil
}

func (uc *UseCase) runStep(ctx context.Context, page output.PagePort, st entity.Step) (string, output.PagePort, error) {
	timeout := st.Timeout
	if timeout <= 0 {
		timeout = uc.stepTimeout
	}

	switch st.Action {
	case entity.StepNavigate:
		if err := page.Navigate(ctx, st.URL); err != nil {
			return "", nil, fmt.Errorf("navigate to %s: %w", st.URL, err)
		}
		return "at " + st.URL, nil, nil

	case entity.StepWait:
		return uc.wait(ctx, page, st, timeout)

	case entity.StepNewPage:
		next, err := uc.ui.ClickForNewPage(ctx, page, st.Query, timeout)
		if err != nil {
			return "", nil, err
		}
		url, err := next.CurrentURL(ctx)
		if err != nil {
			return "switched to new page", next, nil
		}
		return "switched to " + url, next, nil

	case entity.StepOpenPanel:
		state, err := uc.ui.OpenPanel(ctx, page, st.Query, st.Panel, st.Timeout)
		return "panel " + string(state), nil, err

	case entity.StepResults:
		policy, err := service.ParseEmptyResultPolicy(st.Policy)
		if err != nil {
			return "", nil, err
		}
		state, err := uc.ui.AwaitResults(ctx, page, st.Query, st.Empty, policy, st.Timeout)
		if err != nil {
			return "", nil, err
		}
		if state.Rows > 0 {
			return fmt.Sprintf("%d rows", state.Rows), nil, nil
		}
		return "no data message shown", nil, nil
	}

	spec, ok := st.ActionSpec()
	if !ok {
		return "", nil, entity.NewProgrammerError("unknown action %q", st.Action)
	}
	spec.Timeout = timeout

	res, err := uc.ui.Act(ctx, page, st.Query, spec)
	if err != nil {
		return "", nil, err
	}
	return uc.checkOutput(st, res)
}

func (uc *UseCase) wait(ctx context.Context, page output.PagePort, st entity.Step, timeout time.Duration) (string, output.PagePort, error) {
	var outcome entity.WaitOutcome
	switch st.Wait.Kind {
	case entity.WaitVisible:
		outcome = uc.ui.Visible(ctx, page, st.Query, timeout)
	case entity.WaitHidden:
		outcome = uc.ui.Hidden(ctx, page, st.Query, timeout)
	case entity.WaitURL:
		re, err := regexp.Compile(st.Wait.Pattern)
		if err != nil {
			return "", nil, entity.NewProgrammerError("bad url pattern: %v", err)
		}
		outcome = uc.ui.WaitUntil(ctx, waiter.URLMatches(page, re, timeout))
	case entity.WaitIdle:
		outcome = uc.ui.WaitUntil(ctx, waiter.NetworkIdle(page, timeout))
	default:
		return "", nil, entity.NewProgrammerError("unknown wait %q", st.Wait.Kind)
	}

	if err := outcome.Err(); err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s after %s", outcome.Condition, outcome.Elapsed.Round(time.Millisecond)), nil, nil
}

func (uc *UseCase) checkOutput(st entity.Step, res entity.ActionResult) (string, output.PagePort, error) {
	detail := "via " + string(res.Method)
	if res.UsedFallback() {
		detail = fmt.Sprintf("via fallback %s (#%d)", res.Method, res.MethodIndex)
	}

	var got string
	switch st.Action {
	case entity.StepText:
		got = res.Output.Text
	case entity.StepAttribute:
		if !res.Output.Present {
			if st.Expect != "" {
				return "", nil, fmt.Errorf("attribute %q is not set on %s", st.Attribute, st.Query.Label())
			}
			return "attribute absent", nil, nil
		}
		got = res.Output.Attribute
	default:
		return detail, nil, nil
	}

	if st.Expect != "" && !strings.Contains(got, st.Expect) {
		return "", nil, fmt.Errorf("expected %q in %q", st.Expect, got)
	}
	return fmt.Sprintf("%q %s", got, detail), nil, nil
}

func (uc *UseCase) captureFailure(ctx context.Context, page output.PagePort, step string) string {
	if uc.capture == nil {
		return ""
	}
	// The run context may be what failed; capture on a fresh, bounded one.
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	dir, err := uc.capture.CaptureFailure(captureCtx, page, step)
	if err != nil && dir == "" {
		uc.logger.Warn("Failure capture failed", "step", step, "error", err)
		return ""
	}
	if err != nil {
		uc.logger.Debug("Failure capture incomplete", "step", step, "dir", dir, "error", err)
	}
	return dir
}

func stepName(st entity.Step, i int) string {
	if st.Name != "" {
		return st.Name
	}
	if len(st.Query.Candidates) > 0 {
		return fmt.Sprintf("%s %s", st.Action, st.Query.Label())
	}
	return fmt.Sprintf("step %d", i+1)
}

func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen] + "..."
}

// IsExpectedFailure reports whether err is a UI outcome (missing element,
// failed action, timeout, no new page) rather than a broken scenario file.
func IsExpectedFailure(err error) bool {
	return errors.Is(err, entity.ErrElementNotFound) ||
		errors.Is(err, entity.ErrAction) ||
		errors.Is(err, entity.ErrTimedOut) ||
		errors.Is(err, entity.ErrNoNewPage)
}
