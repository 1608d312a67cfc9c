package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultPollInterval = 150 * time.Millisecond
	minPollInterval     = 50 * time.Millisecond
	maxPollInterval     = 250 * time.Millisecond
)

var errNoMatch = errors.New("no candidate matched")

// errScopeMissing marks a pass where the query's scope matched nothing. Single
// passes report that as an absent element; Resolve keeps it for diagnostics.
var errScopeMissing = errors.New("scope not found")

type Config struct {
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{PollInterval: defaultPollInterval}
}

// Resolver turns an ElementQuery into the first visible, attached element of
// the highest-priority candidate that currently matches.
type Resolver struct {
	interval time.Duration
	logger   output.LoggerPort
}

func New(cfg Config, logger output.LoggerPort) *Resolver {
	interval := cfg.PollInterval
	switch {
	case interval <= 0:
		interval = defaultPollInterval
	case interval < minPollInterval:
		interval = minPollInterval
	case interval > maxPollInterval:
		interval = maxPollInterval
	}
	return &Resolver{interval: interval, logger: logger}
}

func (r *Resolver) PollInterval() time.Duration {
	return r.interval
}

// Resolve polls until a candidate matches or the deadline passes. A deadline
// of zero or less fails at once without querying the page.
func (r *Resolver) Resolve(ctx context.Context, page output.PagePort, q entity.ElementQuery, deadline time.Duration) (entity.ResolvedElement, error) {
	if err := q.Validate(); err != nil {
		return entity.ResolvedElement{}, err
	}

	start := time.Now()
	if deadline <= 0 {
		return entity.ResolvedElement{}, &entity.ElementNotFoundError{
			Query:      q.Label(),
			Candidates: q.Candidates,
		}
	}

	pollCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var (
		passes  int
		lastErr error
	)
	op := func() (entity.ResolvedElement, error) {
		passes++
		el, ok, err := r.probe(pollCtx, page, q)
		if err != nil && pollCtx.Err() == nil {
			lastErr = err
		}
		if ok {
			return el, nil
		}
		return entity.ResolvedElement{}, errNoMatch
	}

	el, err := backoff.RetryWithData(op, backoff.WithContext(backoff.NewConstantBackOff(r.interval), pollCtx))
	if err == nil {
		r.logger.Debug("Element resolved",
			"query", q.Label(),
			"candidate", el.CandidateIndex,
			"selector", el.Selector.String(),
			"passes", passes,
			"elapsed", time.Since(start),
		)
		return el, nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return entity.ResolvedElement{}, fmt.Errorf("resolve %q: %w", q.Label(), ctx.Err())
	}

	nf := &entity.ElementNotFoundError{
		Query:      q.Label(),
		Candidates: q.Candidates,
		Elapsed:    time.Since(start),
		Passes:     passes,
		LastErr:    lastErr,
	}
	r.logger.Debug("Element not found", "query", q.Label(), "passes", passes, "elapsed", nf.Elapsed)
	return entity.ResolvedElement{}, nf
}

// Probe runs a single resolution pass without waiting.
func (r *Resolver) Probe(ctx context.Context, page output.PagePort, q entity.ElementQuery) (entity.ResolvedElement, bool, error) {
	if err := q.Validate(); err != nil {
		return entity.ResolvedElement{}, false, err
	}
	el, ok, err := r.probe(ctx, page, q)
	return el, ok, dropMissingScope(err)
}

// Count returns the number of visible matches of the first candidate that
// matches anything, which is what a single resolution pass would act on.
func (r *Resolver) Count(ctx context.Context, page output.PagePort, q entity.ElementQuery) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	scope, ok, err := r.scope(ctx, page, q)
	if !ok {
		return 0, dropMissingScope(err)
	}

	var lastErr error
	for _, c := range q.Candidates {
		matches, err := r.visibleMatches(ctx, page, c, scope, -1)
		if err != nil {
			lastErr = err
			continue
		}
		if len(matches) > 0 {
			return len(matches), nil
		}
	}
	return 0, lastErr
}

func (r *Resolver) probe(ctx context.Context, page output.PagePort, q entity.ElementQuery) (entity.ResolvedElement, bool, error) {
	scope, ok, err := r.scope(ctx, page, q)
	if !ok {
		return entity.ResolvedElement{}, false, err
	}

	var lastErr error
	for i, c := range q.Candidates {
		matches, err := r.visibleMatches(ctx, page, c, scope, q.Index+1)
		if err != nil {
			lastErr = err
			continue
		}
		if len(matches) > q.Index {
			return entity.ResolvedElement{
				Handle:         matches[q.Index],
				CandidateIndex: i,
				Selector:       c,
				Query:          q.Label(),
			}, true, nil
		}
	}
	return entity.ResolvedElement{}, false, lastErr
}

func (r *Resolver) scope(ctx context.Context, page output.PagePort, q entity.ElementQuery) (entity.ElementHandle, bool, error) {
	if q.Scope == nil {
		return nil, true, nil
	}
	parent, ok, err := r.probe(ctx, page, *q.Scope)
	if !ok {
		if err == nil {
			err = fmt.Errorf("scope %q: %w", q.Scope.Label(), errScopeMissing)
		}
		return nil, false, err
	}
	return parent.Handle, true, nil
}

func dropMissingScope(err error) error {
	if errors.Is(err, errScopeMissing) {
		return nil
	}
	return err
}

// visibleMatches keeps FindAll's document order and stops once limit
// elements are collected; a negative limit collects all of them.
func (r *Resolver) visibleMatches(ctx context.Context, page output.PagePort, c entity.Selector, scope entity.ElementHandle, limit int) ([]entity.ElementHandle, error) {
	found, err := page.FindAll(ctx, c, scope)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c, err)
	}

	var out []entity.ElementHandle
	for _, el := range found {
		visible, err := page.IsVisible(ctx, el)
		if err != nil || !visible {
			continue
		}
		attached, err := page.IsAttached(ctx, el)
		if err != nil || !attached {
			continue
		}
		out = append(out, el)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
