package userinteraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/multierr"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
)

var _ output.ReporterPort = (*ConsoleReporter)(nil)

// ConsoleReporter prints scenario progress for humans. Detailed diagnostics
// go to the log file; this stays short.
type ConsoleReporter struct {
	out     io.Writer
	verbose bool
}

func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	if out == nil {
		out = color.Output
	}
	return &ConsoleReporter{out: out, verbose: verbose}
}

func (u *ConsoleReporter) ShowScenario(ctx context.Context, name string, steps int) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(u.out, "\n━━━ %s (%d steps) ━━━\n", name, steps)
}

func (u *ConsoleReporter) ShowStepStart(ctx context.Context, index int, name, action string) {
	icon := getActionIcon(action)
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(u.out, "%2d. %s %s", index, icon, name)
	if u.verbose {
		dim := color.New(color.Faint)
		dim.Fprintf(u.out, " [%s]", action)
	}
	fmt.Fprintln(u.out)
}

func (u *ConsoleReporter) ShowStepResult(ctx context.Context, index int, name, detail string, elapsed time.Duration, err error) {
	dim := color.New(color.Faint)
	if err != nil {
		red := color.New(color.FgRed)
		red.Fprint(u.out, "    ❌ ")
		fmt.Fprintln(u.out, truncate(summarizeError(err), 300))
		if u.verbose {
			for _, cause := range causes(err) {
				dim.Fprintf(u.out, "       - %s\n", truncate(cause, 200))
			}
		}
		return
	}

	green := color.New(color.FgGreen)
	green.Fprint(u.out, "    ✓ ")
	if detail != "" {
		fmt.Fprint(u.out, detail, " ")
	}
	dim.Fprintf(u.out, "(%s)\n", elapsed.Round(time.Millisecond))
}

func (u *ConsoleReporter) ShowSummary(ctx context.Context, name string, passed, total int, elapsed time.Duration) {
	c := color.New(color.FgGreen, color.Bold)
	verdict := "PASSED"
	if passed < total {
		c = color.New(color.FgRed, color.Bold)
		verdict = "FAILED"
	}
	c.Fprintf(u.out, "\n%s %s: %d/%d steps in %s\n", verdict, name, passed, total, elapsed.Round(time.Millisecond))
}

func getActionIcon(action string) string {
	icons := map[entity.StepAction]string{
		entity.StepNavigate:  "🌐",
		entity.StepClick:     "🖱️",
		entity.StepFill:      "✏️",
		entity.StepCheck:     "☑️",
		entity.StepUncheck:   "☐",
		entity.StepHover:     "👆",
		entity.StepSelect:    "📋",
		entity.StepText:      "🔍",
		entity.StepAttribute: "🔍",
		entity.StepWait:      "⏳",
		entity.StepNewPage:   "🗗",
		entity.StepOpenPanel: "📂",
		entity.StepResults:   "📊",
	}
	if icon, ok := icons[entity.StepAction(action)]; ok {
		return icon
	}
	return "🔧"
}

// summarizeError names the failure kind first so scrolling output stays
// scannable.
func summarizeError(err error) string {
	var (
		notFound *entity.ElementNotFoundError
		action   *entity.ActionError
		timedOut *entity.TimedOutError
	)
	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("Not found: %s after %s", notFound.Query, notFound.Elapsed.Round(time.Millisecond))
	case errors.As(err, &action):
		return fmt.Sprintf("Action failed: %s on %s via %s", action.Kind, action.Query, joinMethods(action.Methods()))
	case errors.As(err, &timedOut):
		return fmt.Sprintf("Timed out: %s after %s", timedOut.Condition, timedOut.Elapsed.Round(time.Millisecond))
	case errors.Is(err, entity.ErrNoNewPage):
		return "No new page: " + err.Error()
	}
	return err.Error()
}

func causes(err error) []string {
	var action *entity.ActionError
	if errors.As(err, &action) {
		var out []string
		for _, a := range action.Attempts {
			out = append(out, fmt.Sprintf("%s: %v", a.Method, a.Err))
		}
		return out
	}
	var out []string
	for _, e := range multierr.Errors(errors.Unwrap(err)) {
		out = append(out, e.Error())
	}
	return out
}

func joinMethods(methods []entity.Method) string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
