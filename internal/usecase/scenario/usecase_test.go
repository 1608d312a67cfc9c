package scenario

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"resilient-ui/internal/adapter/method"
	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/application/service"
	"resilient-ui/internal/domain/entity"
	"resilient-ui/internal/infrastructure/browser/static"
	"resilient-ui/internal/infrastructure/logger"
	"resilient-ui/internal/usecase/executor"
	"resilient-ui/internal/usecase/resolver"
	"resilient-ui/internal/usecase/waiter"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var site = map[string]string{
	"about:blank": `<html><body></body></html>`,
	"/search": `<html><body>
  <button id="filters-toggle">Filters</button>
  <div id="filters" class="collapse"><input id="company" placeholder="Company"></div>
  <button id="search-btn">Search Here</button>
  <table id="results"><tbody></tbody></table>
  <p id="no-data" hidden>No data available</p>
  <a id="details" href="/details" target="_blank">Details</a>
</body></html>`,
	"/details": `<html><body><h1 title="detail">Company details</h1></body></html>`,
}

type fakeBrowser struct {
	page output.PagePort
	err  error
}

func (b *fakeBrowser) NewPage(context.Context) (output.PagePort, error) {
	return b.page, b.err
}

func (b *fakeBrowser) Close() {}

type reported struct {
	index  int
	name   string
	detail string
	err    error
}

type fakeReporter struct {
	mu       sync.Mutex
	scenario string
	started  []string
	results  []reported
	passed   int
	total    int
}

func (r *fakeReporter) ShowScenario(_ context.Context, name string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenario = name
}

func (r *fakeReporter) ShowStepStart(_ context.Context, _ int, name, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
}

func (r *fakeReporter) ShowStepResult(_ context.Context, index int, name, detail string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, reported{index: index, name: name, detail: detail, err: err})
}

func (r *fakeReporter) ShowSummary(_ context.Context, _ string, passed, total int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passed, r.total = passed, total
}

type fakeCapture struct {
	steps []string
}

func (c *fakeCapture) CaptureFailure(_ context.Context, _ output.PagePort, step string) (string, error) {
	c.steps = append(c.steps, step)
	return "captures/run-1", nil
}

func newRunner(t *testing.T, page output.PagePort, capture output.CapturePort) (*UseCase, *fakeReporter) {
	t.Helper()
	nop := logger.NewNop()
	res := resolver.New(resolver.Config{PollInterval: 20 * time.Millisecond}, nop)
	exec := executor.New(res, service.NewMethodRegistry(method.Defaults()...), executor.Config{Settle: time.Millisecond}, nop)
	ui := service.NewUI(res, exec, waiter.New(waiter.Config{PollInterval: 10 * time.Millisecond}, nop), service.UIConfig{PanelTimeout: time.Second, ResultsTimeout: time.Second}, nop)

	reporter := &fakeReporter{}
	return New(ui, &fakeBrowser{page: page}, reporter, capture, nop, 500*time.Millisecond), reporter
}

func newSite(t *testing.T) *static.Page {
	t.Helper()
	p, err := static.NewSite(site, "about:blank")
	require.NoError(t, err)
	require.NoError(t, p.OnClick("#filters-toggle", func(doc *goquery.Document, _ *goquery.Selection) {
		doc.Find("#filters").AddClass("show")
	}))
	require.NoError(t, p.OnClick("#search-btn", func(doc *goquery.Document, _ *goquery.Selection) {
		company := doc.Find("#company").AttrOr("value", "")
		doc.Find("#results tbody").AppendHtml("<tr><td>" + company + " Corp</td></tr>")
	}))
	return p
}

func searchScenario() *entity.Scenario {
	return &entity.Scenario{
		Name: "company search",
		URL:  "/search",
		Steps: []entity.Step{
			{Action: entity.StepWait, Wait: &entity.WaitSpec{Kind: entity.WaitURL, Pattern: "search$"}},
			{
				Name:   "open filters",
				Action: entity.StepOpenPanel,
				Query:  entity.Query("Filters toggle", entity.ByID("filters-toggle")),
				Panel:  entity.Query("Filters panel", entity.ByID("filters")),
			},
			{Action: entity.StepFill, Query: entity.Query("company", entity.ByPlaceholder("Company")), Value: "Acme"},
			{
				Name:    "search",
				Action:  entity.StepClick,
				Query:   entity.Query("search", entity.ByID("search"), entity.ByText("Search Here")),
				Methods: []entity.Method{entity.MethodNative, entity.MethodDispatch},
			},
			{
				Name:   "results",
				Action: entity.StepResults,
				Query:  entity.Query("rows", entity.ByCSS("#results tbody tr")),
				Empty:  entity.Query("no data", entity.ByID("no-data")),
				Policy: "rows",
			},
			{Name: "first row", Action: entity.StepText, Query: entity.Query("rows", entity.ByCSS("#results tbody tr")), Expect: "Acme Corp"},
			{Name: "details", Action: entity.StepNewPage, Query: entity.Query("details", entity.ByID("details"))},
			{Action: entity.StepWait, Query: entity.Query("heading", entity.ByCSS("h1")), Wait: &entity.WaitSpec{Kind: entity.WaitVisible}},
			{Name: "heading", Action: entity.StepAttribute, Query: entity.Query("heading", entity.ByCSS("h1")), Attribute: "title", Expect: "detail"},
		},
	}
}

func TestRun_Passes(t *testing.T) {
	page := newSite(t)
	capture := &fakeCapture{}
	uc, reporter := newRunner(t, page, capture)

	result, err := uc.Run(context.Background(), searchScenario())
	require.NoError(t, err)

	for _, s := range result.Steps {
		require.NoError(t, s.Err, s.Name)
	}
	assert.False(t, result.Failed())
	assert.Equal(t, 10, result.Passed)
	assert.Len(t, result.Steps, 10)
	assert.Empty(t, result.Capture)
	assert.Empty(t, capture.steps)

	assert.Equal(t, "open /search", result.Steps[0].Name)
	assert.Equal(t, "panel open", result.Steps[2].Detail)
	assert.Equal(t, "1 rows", result.Steps[5].Detail)
	assert.Contains(t, result.Steps[6].Detail, `"Acme Corp"`)
	assert.Equal(t, "switched to /details", result.Steps[7].Detail)

	assert.Equal(t, "company search", reporter.scenario)
	assert.Equal(t, 10, reporter.passed)
	assert.Equal(t, 10, reporter.total)
	assert.Len(t, reporter.started, 10)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	page := newSite(t)
	capture := &fakeCapture{}
	uc, reporter := newRunner(t, page, capture)

	sc := &entity.Scenario{
		Name: "missing button",
		URL:  "/search",
		Steps: []entity.Step{
			{Name: "export", Action: entity.StepClick, Query: entity.Query("export", entity.ByID("export"))},
			{Name: "never", Action: entity.StepClick, Query: entity.Query("search", entity.ByID("search-btn"))},
		},
	}

	result, err := uc.Run(context.Background(), sc)
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, 1, result.Passed)
	require.Len(t, result.Steps, 2)
	assert.ErrorIs(t, result.Steps[1].Err, entity.ErrElementNotFound)
	assert.True(t, IsExpectedFailure(result.Steps[1].Err))
	assert.Equal(t, "captures/run-1", result.Capture)
	assert.Equal(t, []string{"export"}, capture.steps)

	assert.Equal(t, 1, reporter.passed)
	assert.Equal(t, 3, reporter.total)
	require.Len(t, reporter.results, 2)
	assert.Error(t, reporter.results[1].err)
}

func TestRun_ExpectMismatch(t *testing.T) {
	page := newSite(t)
	uc, _ := newRunner(t, page, nil)

	sc := &entity.Scenario{
		Name: "wrong label",
		URL:  "/search",
		Steps: []entity.Step{
			{Action: entity.StepText, Query: entity.Query("search", entity.ByID("search-btn")), Expect: "Find"},
		},
	}

	result, err := uc.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)
	assert.EqualError(t, result.Steps[1].Err, `expected "Find" in "Search Here"`)
	assert.False(t, IsExpectedFailure(result.Steps[1].Err))
	assert.Empty(t, result.Capture)
}

func TestRun_WaitTimesOut(t *testing.T) {
	page := newSite(t)
	uc, _ := newRunner(t, page, nil)

	sc := &entity.Scenario{
		Name: "no data",
		URL:  "/search",
		Steps: []entity.Step{
			{
				Action:  entity.StepWait,
				Query:   entity.Query("no data", entity.ByID("no-data")),
				Wait:    &entity.WaitSpec{Kind: entity.WaitVisible},
				Timeout: 100 * time.Millisecond,
			},
		},
	}

	result, err := uc.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)

	var timedOut *entity.TimedOutError
	require.ErrorAs(t, result.Steps[1].Err, &timedOut)
	assert.Greater(t, timedOut.Polls, 1)
}

func TestRun_StepTimeoutBoundsPanelAndResults(t *testing.T) {
	for _, st := range []entity.Step{
		{
			Name:    "results",
			Action:  entity.StepResults,
			Query:   entity.Query("rows", entity.ByCSS("#results tbody tr")),
			Empty:   entity.Query("no data", entity.ByID("no-data")),
			Policy:  "rows",
			Timeout: 100 * time.Millisecond,
		},
		{
			Name:    "panel",
			Action:  entity.StepOpenPanel,
			Query:   entity.Query("search", entity.ByID("search-btn")),
			Panel:   entity.Query("results", entity.ByID("results")),
			Timeout: 100 * time.Millisecond,
		},
	} {
		t.Run(st.Name, func(t *testing.T) {
			uc, _ := newRunner(t, newSite(t), nil)

			result, err := uc.Run(context.Background(), &entity.Scenario{Name: st.Name, URL: "/search", Steps: []entity.Step{st}})
			require.NoError(t, err)
			require.Len(t, result.Steps, 2)
			assert.ErrorIs(t, result.Steps[1].Err, entity.ErrTimedOut)
			// The runner's UI waits up to a second by default.
			assert.Less(t, result.Steps[1].Elapsed, 600*time.Millisecond)
		})
	}
}

func TestRun_InvalidScenario(t *testing.T) {
	uc, reporter := newRunner(t, nil, nil)

	_, err := uc.Run(context.Background(), &entity.Scenario{Name: "empty"})
	assert.ErrorIs(t, err, entity.ErrProgrammer)
	assert.Empty(t, reporter.scenario)
}

func TestRun_BrowserError(t *testing.T) {
	uc, _ := newRunner(t, nil, nil)
	uc.browser = &fakeBrowser{err: errors.New("no chrome")}

	_, err := uc.Run(context.Background(), searchScenario())
	assert.EqualError(t, err, "open page: no chrome")
}

func TestTruncate(t *testing.T) {
	short := "ok"
	assert.Equal(t, short, truncate(short))

	long := make([]byte, maxDetailLen+10)
	for i := range long {
		long[i] = 'x'
	}
	got := truncate(string(long))
	assert.Len(t, got, maxDetailLen+3)
}
