package entity

import (
	"context"
	"time"
)

type Predicate func(ctx context.Context) (bool, error)

type WaitCondition struct {
	Name         string
	Predicate    Predicate
	PollInterval time.Duration
	Deadline     time.Duration
}

func Condition(name string, deadline time.Duration, p Predicate) WaitCondition {
	return WaitCondition{Name: name, Predicate: p, Deadline: deadline}
}

func (c WaitCondition) Every(d time.Duration) WaitCondition {
	c.PollInterval = d
	return c
}

func (c WaitCondition) Validate() error {
	if c.Predicate == nil {
		return NewProgrammerError("condition %q has no predicate", c.Name)
	}
	if c.PollInterval < 0 {
		return NewProgrammerError("condition %q has negative poll interval", c.Name)
	}
	return nil
}

type WaitStatus string

const (
	WaitSatisfied WaitStatus = "satisfied"
	WaitTimedOut  WaitStatus = "timed_out"
)

type WaitOutcome struct {
	Condition string
	Status    WaitStatus
	Elapsed   time.Duration
	Polls     int
	LastErr   error
}

func (o WaitOutcome) Satisfied() bool {
	return o.Status == WaitSatisfied
}

// Err converts a timeout into an error for callers that treat it as fatal.
func (o WaitOutcome) Err() error {
	if o.Satisfied() {
		return nil
	}
	return &TimedOutError{
		Condition: o.Condition,
		Elapsed:   o.Elapsed,
		Polls:     o.Polls,
		LastErr:   o.LastErr,
	}
}
