package waiter

import (
	"context"
	"errors"
	"time"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	minPollInterval     = 10 * time.Millisecond
)

var errPending = errors.New("condition not yet satisfied")

type Config struct {
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{PollInterval: defaultPollInterval}
}

// UseCase polls predicates until they hold or their deadline passes. A
// timeout is an outcome, not an error.
type UseCase struct {
	interval time.Duration
	logger   output.LoggerPort
}

func New(cfg Config, logger output.LoggerPort) *UseCase {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if interval < minPollInterval {
		interval = minPollInterval
	}
	return &UseCase{interval: interval, logger: logger}
}

func (uc *UseCase) WaitUntil(ctx context.Context, cond entity.WaitCondition) entity.WaitOutcome {
	start := time.Now()
	outcome := entity.WaitOutcome{Condition: cond.Name, Status: entity.WaitTimedOut}

	if err := cond.Validate(); err != nil {
		outcome.LastErr = err
		return outcome
	}
	if cond.Deadline <= 0 {
		return outcome
	}

	interval := cond.PollInterval
	if interval <= 0 {
		interval = uc.interval
	}
	if interval < minPollInterval {
		interval = minPollInterval
	}

	pollCtx, cancel := context.WithTimeout(ctx, cond.Deadline)
	defer cancel()

	op := func() error {
		outcome.Polls++
		ok, err := cond.Predicate(pollCtx)
		if err != nil && pollCtx.Err() == nil {
			outcome.LastErr = err
		}
		if ok {
			return nil
		}
		return errPending
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(interval), pollCtx))
	outcome.Elapsed = time.Since(start)
	if err == nil {
		outcome.Status = entity.WaitSatisfied
		uc.logger.Debug("Condition satisfied", "condition", cond.Name, "polls", outcome.Polls, "elapsed", outcome.Elapsed)
		return outcome
	}

	if ctxErr := ctx.Err(); ctxErr != nil && outcome.LastErr == nil {
		outcome.LastErr = ctxErr
	}
	uc.logger.Debug("Condition timed out", "condition", cond.Name, "polls", outcome.Polls, "elapsed", outcome.Elapsed)
	return outcome
}
