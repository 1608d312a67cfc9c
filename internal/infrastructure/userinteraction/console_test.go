package userinteraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"resilient-ui/internal/domain/entity"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestConsoleReporter_Passing(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, false)
	ctx := context.Background()

	r.ShowScenario(ctx, "company search", 2)
	r.ShowStepStart(ctx, 1, "open filters", string(entity.StepOpenPanel))
	r.ShowStepResult(ctx, 1, "open filters", "panel open", 312*time.Millisecond, nil)
	r.ShowSummary(ctx, "company search", 2, 2, 1500*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "━━━ company search (2 steps) ━━━")
	assert.Contains(t, out, " 1. 📂 open filters\n")
	assert.Contains(t, out, "✓ panel open (312ms)")
	assert.Contains(t, out, "PASSED company search: 2/2 steps in 1.5s")
	assert.NotContains(t, out, "[open-panel]")
}

func TestConsoleReporter_Failing(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, true)
	ctx := context.Background()

	err := &entity.ActionError{
		Kind:  entity.ActionClick,
		Query: "Save",
		Attempts: []entity.Attempt{
			{Method: entity.MethodNative, Err: errors.New("covered by overlay")},
			{Method: entity.MethodDispatch, Err: errors.New("detached")},
		},
	}
	r.ShowStepStart(ctx, 3, "save", string(entity.StepClick))
	r.ShowStepResult(ctx, 3, "save", "", time.Second, err)
	r.ShowSummary(ctx, "edit", 2, 4, 3*time.Second)

	out := buf.String()
	assert.Contains(t, out, "save [click]")
	assert.Contains(t, out, "❌ Action failed: click on Save via native, dispatch")
	assert.Contains(t, out, "- native: covered by overlay")
	assert.Contains(t, out, "- dispatch: detached")
	assert.Contains(t, out, "FAILED edit: 2/4 steps in 3s")
}

func TestSummarizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "not found",
			err:  &entity.ElementNotFoundError{Query: "Search", Elapsed: 1500 * time.Millisecond},
			want: "Not found: Search after 1.5s",
		},
		{
			name: "timed out",
			err:  fmt.Errorf("wrapped: %w", &entity.TimedOutError{Condition: "panel open", Elapsed: time.Second}),
			want: "Timed out: panel open after 1s",
		},
		{
			name: "no new page",
			err:  fmt.Errorf("%w after clicking %q", entity.ErrNoNewPage, "details"),
			want: `No new page: no new page opened after clicking "details"`,
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarizeError(tt.err))
		})
	}
}

func TestGetActionIcon(t *testing.T) {
	assert.Equal(t, "🌐", getActionIcon("navigate"))
	assert.Equal(t, "🔧", getActionIcon("dance"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
