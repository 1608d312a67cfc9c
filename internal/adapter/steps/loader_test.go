package steps

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"resilient-ui/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioFile = `
name: search companies
url: http://localhost:8080/search
steps:
  - name: open filters
    action: open-panel
    query: [{id: filters-toggle}, {role: button, name: Filters}]
    panel: [{id: filters}]
  - name: company
    action: fill
    query: [{placeholder: Company}, {attr: name, value: company}]
    value: Acme
    methods: [native, keyboard]
  - name: search
    action: click
    query: [{id: search-btn}, {text: Search, exact: true}]
    methods: [native, dispatch]
    timeout: 3s
  - name: first row
    action: text
    query: [{css: tr}]
    within: [{id: results}]
    nth: 1
    expect: Acme
  - name: results
    action: expect-results
    query: [{css: "#results tbody tr"}]
    empty: [{text: No data available}]
    policy: rows
  - name: on results page
    action: wait
    wait: "url:/search\\?q=.+"
  - name: report
    action: expect-new-page
    query: [{testid: report-link}]
`

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(scenarioFile))
	require.NoError(t, err)

	assert.Equal(t, "search companies", sc.Name)
	assert.Equal(t, "http://localhost:8080/search", sc.URL)
	require.Len(t, sc.Steps, 7)

	panel := sc.Steps[0]
	assert.Equal(t, entity.StepOpenPanel, panel.Action)
	assert.Equal(t, []entity.Selector{entity.ByID("filters-toggle"), entity.ByRole("button", "Filters")}, panel.Query.Candidates)
	assert.Equal(t, []entity.Selector{entity.ByID("filters")}, panel.Panel.Candidates)

	fill := sc.Steps[1]
	assert.Equal(t, "Acme", fill.Value)
	assert.Equal(t, []entity.Method{entity.MethodNative, entity.MethodKeyboard}, fill.Methods)
	assert.Equal(t, entity.ByAttr("name", "company"), fill.Query.Candidates[1])

	click := sc.Steps[2]
	assert.Equal(t, 3*time.Second, click.Timeout)
	assert.Equal(t, entity.ByExactText("Search"), click.Query.Candidates[1])
	spec, ok := click.ActionSpec()
	require.True(t, ok)
	assert.Equal(t, []entity.Method{entity.MethodNative, entity.MethodDispatch}, spec.Methods())

	row := sc.Steps[3]
	assert.Equal(t, 1, row.Query.Index)
	require.NotNil(t, row.Query.Scope)
	assert.Equal(t, entity.ByID("results"), row.Query.Scope.Candidates[0])
	assert.Equal(t, "Acme", row.Expect)

	assert.Equal(t, "rows", sc.Steps[4].Policy)
	assert.Equal(t, &entity.WaitSpec{Kind: entity.WaitURL, Pattern: `/search\?q=.+`}, sc.Steps[5].Wait)
	assert.Equal(t, entity.ByTestID("report-link"), sc.Steps[6].Query.Candidates[0])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "name: x\nurl: /\nsteps:\n  - action: click\n    query: [{id: a}]\n    colour: red\n"},
		{"two selector kinds", "name: x\nurl: /\nsteps:\n  - action: click\n    query: [{id: a, css: b}]\n"},
		{"empty selector", "name: x\nurl: /\nsteps:\n  - action: click\n    query: [{}]\n"},
		{"bad timeout", "name: x\nurl: /\nsteps:\n  - action: click\n    query: [{id: a}]\n    timeout: soon\n"},
		{"no steps", "name: x\nurl: /\n"},
		{"missing query", "name: x\nurl: /\nsteps:\n  - action: click\n"},
		{"bad yaml", "name: [x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioFile), 0o644))

	sc, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, sc.Steps, 7)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRebase(t *testing.T) {
	sc := &entity.Scenario{
		Name: "rebase",
		URL:  "/search",
		Steps: []entity.Step{
			{Action: entity.StepNavigate, URL: "details?id=1"},
			{Action: entity.StepNavigate, URL: "https://example.com/x"},
			{Action: entity.StepWait, URL: "/untouched"},
		},
	}
	require.NoError(t, Rebase(sc, "http://127.0.0.1:8089/"))

	assert.Equal(t, "http://127.0.0.1:8089/search", sc.URL)
	assert.Equal(t, "http://127.0.0.1:8089/details?id=1", sc.Steps[0].URL)
	assert.Equal(t, "https://example.com/x", sc.Steps[1].URL)
	assert.Equal(t, "/untouched", sc.Steps[2].URL)

	assert.NoError(t, Rebase(sc, ""))
	assert.Error(t, Rebase(sc, "http://bad host/"))
}
