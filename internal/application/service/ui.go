package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resilient-ui/internal/application/port/input"
	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
	"resilient-ui/internal/usecase/waiter"

	"go.uber.org/multierr"
)

var _ input.UIActions = (*UI)(nil)

const (
	defaultPanelMarker    = "show"
	defaultPanelTimeout   = 5 * time.Second
	defaultResultsTimeout = 10 * time.Second
)

type Resolver interface {
	waiter.Prober
	Resolve(ctx context.Context, page output.PagePort, q entity.ElementQuery, deadline time.Duration) (entity.ResolvedElement, error)
}

type Executor interface {
	Act(ctx context.Context, page output.PagePort, q entity.ElementQuery, spec entity.ActionSpec) (entity.ActionResult, error)
	ClickForNewPage(ctx context.Context, page output.PagePort, q entity.ElementQuery, wait time.Duration) (output.PagePort, error)
}

type Waiter interface {
	WaitUntil(ctx context.Context, cond entity.WaitCondition) entity.WaitOutcome
}

type PanelState string

const (
	PanelClosed        PanelState = "closed"
	PanelOpening       PanelState = "opening"
	PanelOpen          PanelState = "open"
	PanelOpeningFailed PanelState = "opening_failed"
)

// EmptyResultPolicy decides which outcome of a search counts as settled:
// rows, an explicit "no data" message, or either of the two.
type EmptyResultPolicy string

const (
	AcceptEither         EmptyResultPolicy = "either"
	RequireRows          EmptyResultPolicy = "rows"
	RequireNoDataMessage EmptyResultPolicy = "no-data"
)

func ParseEmptyResultPolicy(s string) (EmptyResultPolicy, error) {
	switch p := EmptyResultPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return AcceptEither, nil
	case AcceptEither, RequireRows, RequireNoDataMessage:
		return p, nil
	}
	return "", entity.NewProgrammerError("unknown empty result policy %q", s)
}

type ResultState struct {
	Rows        int
	NoDataShown bool
}

type UIConfig struct {
	PanelMarker    string
	PanelTimeout   time.Duration
	ResultsTimeout time.Duration
}

func DefaultUIConfig() UIConfig {
	return UIConfig{
		PanelMarker:    defaultPanelMarker,
		PanelTimeout:   defaultPanelTimeout,
		ResultsTimeout: defaultResultsTimeout,
	}
}

// UI is the surface page adapters build on: resolution, actions and waits,
// plus the panel and search-result idioms shared by many pages.
type UI struct {
	resolver Resolver
	executor Executor
	waiter   Waiter
	logger   output.LoggerPort
	cfg      UIConfig
}

func NewUI(resolver Resolver, executor Executor, waiter Waiter, cfg UIConfig, logger output.LoggerPort) *UI {
	def := DefaultUIConfig()
	if cfg.PanelMarker == "" {
		cfg.PanelMarker = def.PanelMarker
	}
	if cfg.PanelTimeout <= 0 {
		cfg.PanelTimeout = def.PanelTimeout
	}
	if cfg.ResultsTimeout <= 0 {
		cfg.ResultsTimeout = def.ResultsTimeout
	}
	return &UI{
		resolver: resolver,
		executor: executor,
		waiter:   waiter,
		logger:   logger,
		cfg:      cfg,
	}
}

func (u *UI) Resolve(ctx context.Context, page output.PagePort, q entity.ElementQuery, deadline time.Duration) (entity.ResolvedElement, error) {
	return u.resolver.Resolve(ctx, page, q, deadline)
}

func (u *UI) Act(ctx context.Context, page output.PagePort, q entity.ElementQuery, spec entity.ActionSpec) (entity.ActionResult, error) {
	return u.executor.Act(ctx, page, q, spec)
}

func (u *UI) WaitUntil(ctx context.Context, cond entity.WaitCondition) entity.WaitOutcome {
	return u.waiter.WaitUntil(ctx, cond)
}

func (u *UI) ClickForNewPage(ctx context.Context, page output.PagePort, q entity.ElementQuery, wait time.Duration) (output.PagePort, error) {
	return u.executor.ClickForNewPage(ctx, page, q, wait)
}

// Visible is a shorthand for waiting on waiter.Visible.
func (u *UI) Visible(ctx context.Context, page output.PagePort, q entity.ElementQuery, deadline time.Duration) entity.WaitOutcome {
	return u.waiter.WaitUntil(ctx, waiter.Visible(u.resolver, page, q, deadline))
}

func (u *UI) Hidden(ctx context.Context, page output.PagePort, q entity.ElementQuery, deadline time.Duration) entity.WaitOutcome {
	return u.waiter.WaitUntil(ctx, waiter.Hidden(u.resolver, page, q, deadline))
}

// PanelState reports Open when the panel is visible and its class list holds
// the configured marker, Closed otherwise.
func (u *UI) PanelState(ctx context.Context, page output.PagePort, panel entity.ElementQuery) (PanelState, error) {
	el, ok, err := u.resolver.Probe(ctx, page, panel)
	if err != nil || !ok {
		return PanelClosed, err
	}
	class, _, err := page.GetAttribute(ctx, el.Handle, "class")
	if err != nil {
		return PanelClosed, err
	}
	for _, c := range strings.Fields(class) {
		if c == u.cfg.PanelMarker {
			return PanelOpen, nil
		}
	}
	return PanelClosed, nil
}

// OpenPanel clicks toggle unless panel is already open, then waits up to
// timeout for the open marker; zero or less uses the configured panel
// timeout. OpeningFailed comes with a *entity.TimedOutError.
func (u *UI) OpenPanel(ctx context.Context, page output.PagePort, toggle, panel entity.ElementQuery, timeout time.Duration) (PanelState, error) {
	if timeout <= 0 {
		timeout = u.cfg.PanelTimeout
	}
	state, err := u.PanelState(ctx, page, panel)
	if err != nil {
		u.logger.Debug("Panel state probe failed", "panel", panel.Label(), "error", err)
	}
	if state == PanelOpen {
		u.logger.Debug("Panel already open", "panel", panel.Label())
		return PanelOpen, nil
	}

	if _, err := u.executor.Act(ctx, page, toggle, entity.Click(entity.MethodDispatch).WithTimeout(timeout)); err != nil {
		return PanelClosed, entity.Describe(fmt.Sprintf("Failed to open %s", panel.Label()), err)
	}
	u.logger.Debug("Panel transition", "panel", panel.Label(), "toggle", toggle.Label(), "state", PanelOpening)

	outcome := u.waiter.WaitUntil(ctx, waiter.AttributeContains(u.resolver, page, panel, "class", u.cfg.PanelMarker, timeout))
	if !outcome.Satisfied() {
		u.logger.Warn("Panel did not open", "panel", panel.Label(), "elapsed", outcome.Elapsed)
		return PanelOpeningFailed, outcome.Err()
	}
	return PanelOpen, nil
}

// AwaitResults waits until a search has settled according to policy: rows
// matched by rows, the noData message, or either.
func (u *UI) AwaitResults(ctx context.Context, page output.PagePort, rows, noData entity.ElementQuery, policy EmptyResultPolicy, timeout time.Duration) (ResultState, error) {
	if timeout <= 0 {
		timeout = u.cfg.ResultsTimeout
	}
	if _, err := ParseEmptyResultPolicy(string(policy)); err != nil {
		return ResultState{}, err
	}
	if policy == "" {
		policy = AcceptEither
	}
	if err := rows.Validate(); err != nil {
		return ResultState{}, err
	}
	if err := noData.Validate(); err != nil {
		return ResultState{}, err
	}

	var state ResultState
	name := fmt.Sprintf("%s or %s (%s)", rows.Label(), noData.Label(), policy)
	outcome := u.waiter.WaitUntil(ctx, entity.Condition(name, timeout, func(ctx context.Context) (bool, error) {
		count, rowsErr := u.resolver.Count(ctx, page, rows)
		_, shown, noDataErr := u.resolver.Probe(ctx, page, noData)
		state = ResultState{Rows: count, NoDataShown: shown}

		var settled bool
		switch policy {
		case RequireRows:
			settled = count > 0
		case RequireNoDataMessage:
			settled = shown
		default:
			settled = count > 0 || shown
		}
		if settled {
			return true, nil
		}
		return false, multierr.Combine(rowsErr, noDataErr)
	}))

	if !outcome.Satisfied() {
		return state, outcome.Err()
	}
	u.logger.Debug("Results settled", "rows", state.Rows, "no_data", state.NoDataShown, "policy", policy)
	return state, nil
}
