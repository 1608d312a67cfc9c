package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrElementNotFound is returned when no candidate matched a visible, attached element in time
	ErrElementNotFound = errors.New("element not found")

	// ErrAction is returned when every method failed to perform an action
	ErrAction = errors.New("action failed")

	// ErrTimedOut is returned when a wait condition never became true
	ErrTimedOut = errors.New("condition timed out")

	// ErrProgrammer is returned for malformed queries, specs and conditions
	ErrProgrammer = errors.New("programmer error")

	// ErrNoNewPage is returned when a click did not open a new page in time
	ErrNoNewPage = errors.New("no new page opened")

	// ErrMethodUnsupported is returned by a method that cannot perform the requested kind
	ErrMethodUnsupported = errors.New("method does not support action")

	// ErrStaleElement is returned when a resolved element was detached or hidden before acting
	ErrStaleElement = errors.New("element is no longer visible or attached")
)

type ElementNotFoundError struct {
	Query      string
	Candidates []Selector
	Elapsed    time.Duration
	Passes     int
	LastErr    error
}

func (e *ElementNotFoundError) Error() string {
	tried := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		tried[i] = c.String()
	}
	msg := fmt.Sprintf("%s: %q after %s (%d passes), tried [%s]",
		ErrElementNotFound, e.Query, e.Elapsed.Round(time.Millisecond), e.Passes, strings.Join(tried, ", "))
	if e.LastErr != nil {
		msg += ": last error: " + e.LastErr.Error()
	}
	return msg
}

func (e *ElementNotFoundError) Is(target error) bool {
	return target == ErrElementNotFound
}

func (e *ElementNotFoundError) Unwrap() error {
	return e.LastErr
}

type ActionError struct {
	Kind     ActionKind
	Query    string
	Attempts []Attempt
}

func (e *ActionError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Method, a.Err)
	}
	return fmt.Sprintf("%s: %s on %q, attempted [%s]", ErrAction, e.Kind, e.Query, strings.Join(parts, "; "))
}

func (e *ActionError) Is(target error) bool {
	return target == ErrAction
}

// Unwrap exposes the individual attempt failures to errors.Is and errors.As.
func (e *ActionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

func (e *ActionError) Methods() []Method {
	out := make([]Method, len(e.Attempts))
	for i, a := range e.Attempts {
		out[i] = a.Method
	}
	return out
}

type TimedOutError struct {
	Condition string
	Elapsed   time.Duration
	Polls     int
	LastErr   error
}

func (e *TimedOutError) Error() string {
	msg := fmt.Sprintf("%s: %q after %s (%d polls)", ErrTimedOut, e.Condition, e.Elapsed.Round(time.Millisecond), e.Polls)
	if e.LastErr != nil {
		msg += ": last error: " + e.LastErr.Error()
	}
	return msg
}

func (e *TimedOutError) Is(target error) bool {
	return target == ErrTimedOut
}

func (e *TimedOutError) Unwrap() error {
	return e.LastErr
}

type ProgrammerError struct {
	Reason string
}

func NewProgrammerError(format string, args ...any) *ProgrammerError {
	return &ProgrammerError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ProgrammerError) Error() string {
	return fmt.Sprintf("%s: %s", ErrProgrammer, e.Reason)
}

func (e *ProgrammerError) Is(target error) bool {
	return target == ErrProgrammer
}

// Describe prefixes err with a page-level message such as
// "Failed to click Search Here", keeping the typed cause reachable.
func Describe(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
