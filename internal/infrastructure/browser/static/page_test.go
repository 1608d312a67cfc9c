package static

import (
	"context"
	"testing"
	"time"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<!DOCTYPE html>
<html>
<head><title>Search</title><script>var search = "Search";</script></head>
<body>
  <form id="filters">
    <input id="company" type="text" placeholder="Company name">
    <input id="token" type="hidden" value="abc">
    <input id="active" type="checkbox" name="active">
    <label><input type="radio" name="kind" value="a" checked> A</label>
    <label><input type="radio" name="kind" value="b"> B</label>
    <select id="country">
      <option value="de">Germany</option>
      <option value="fr">France</option>
    </select>
    <textarea id="notes">old</textarea>
  </form>
  <div class="toolbar">
    <button id="reset" type="button">Reset</button>
    <button class="primary" data-testid="search"><span>Search</span> Here</button>
    <button id="covered" data-covered="div.overlay">Save</button>
    <button id="disabled" disabled>Delete</button>
    <div role="checkbox" aria-checked="false" id="fancy">Fancy</div>
  </div>
  <div id="hidden-panel" style="display: none"><button>Search</button></div>
  <a id="docs" href="/docs" target="_blank">Docs</a>
  <button id="open" data-opens="/report">Report</button>
  <ul id="rows"><li>one</li><li>two</li></ul>
</body>
</html>`

func newSearchPage(t *testing.T) *Page {
	t.Helper()
	p, err := NewSite(map[string]string{
		"/":     searchPage,
		"/docs": `<html><body><h1>Docs</h1></body></html>`,
	}, "/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func findOne(t *testing.T, p *Page, sel entity.Selector) entity.ElementHandle {
	t.Helper()
	found, err := p.FindAll(context.Background(), sel, nil)
	require.NoError(t, err)
	require.NotEmpty(t, found, sel.String())
	return found[0]
}

func TestPage_FindAll_SelectorKinds(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)

	tests := []struct {
		name string
		sel  entity.Selector
		want []string
	}{
		{"id", entity.ByID("reset"), []string{"<button#reset>"}},
		{"testid", entity.ByTestID("search"), []string{"<button.primary>"}},
		{"placeholder", entity.ByPlaceholder("Company"), []string{"<input#company>"}},
		{"attr", entity.ByAttr("name", "active"), []string{"<input#active>"}},
		{"role with name", entity.ByRole("button", "reset"), []string{"<button#reset>"}},
		{"role checkbox", entity.ByRole("checkbox", ""), []string{"<input#active>", "<div#fancy>"}},
		{"text innermost", entity.ByExactText("Search"), []string{"<span>", "<button>"}},
		{"text contains", entity.ByText("search here"), []string{"<button.primary>"}},
		{"no match", entity.ByID("missing"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := p.FindAll(ctx, tt.sel, nil)
			require.NoError(t, err)

			var got []string
			for _, el := range found {
				got = append(got, el.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPage_FindAll_Scoped(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)

	toolbar := findOne(t, p, entity.ByCSS(".toolbar"))
	found, err := p.FindAll(ctx, entity.ByCSS("button"), toolbar)
	require.NoError(t, err)
	assert.Len(t, found, 4)

	rows := findOne(t, p, entity.ByID("rows"))
	found, err = p.FindAll(ctx, entity.ByCSS("button"), rows)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestPage_FindAll_Errors(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)

	_, err := p.FindAll(ctx, entity.ByXPath("//button"), nil)
	assert.ErrorIs(t, err, ErrXPath)

	_, err = p.FindAll(ctx, entity.ByCSS("button[["), nil)
	assert.Error(t, err)

	other := MustNew(`<button id="x">x</button>`)
	foreign := findOne(t, other, entity.ByID("x"))
	_, err = p.FindAll(ctx, entity.ByCSS("span"), foreign)
	assert.ErrorIs(t, err, ErrForeignHandle)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.FindAll(cancelled, entity.ByID("reset"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPage_Visibility(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)

	tests := []struct {
		sel  entity.Selector
		want bool
	}{
		{entity.ByID("reset"), true},
		{entity.ByID("token"), false},
		{entity.ByCSS("#hidden-panel button"), false},
		{entity.ByCSS("title"), false},
	}
	for _, tt := range tests {
		visible, err := p.IsVisible(ctx, findOne(t, p, tt.sel))
		require.NoError(t, err)
		assert.Equal(t, tt.want, visible, tt.sel.String())
	}
}

func TestPage_IsAttached_AfterRemoval(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)
	reset := findOne(t, p, entity.ByID("reset"))

	attached, err := p.IsAttached(ctx, reset)
	require.NoError(t, err)
	assert.True(t, attached)

	p.Mutate(func(doc *goquery.Document) { doc.Find("#reset").Remove() })

	attached, err = p.IsAttached(ctx, reset)
	require.NoError(t, err)
	assert.False(t, attached)

	visible, err := p.IsVisible(ctx, reset)
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestPage_Click_RunsHandlers(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)

	require.NoError(t, p.OnClick(".toolbar", func(doc *goquery.Document, target *goquery.Selection) {
		doc.Find("#rows").AppendHtml("<li>" + target.Text() + "</li>")
	}))

	require.NoError(t, p.Click(ctx, findOne(t, p, entity.ByID("reset"))))

	rows, err := p.FindAll(ctx, entity.ByCSS("#rows li"), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	events := p.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, Event{Type: "click", Target: "<button#reset>"}, events[0])
}

func TestPage_Click_CoveredFallsBackToDispatch(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)
	el := findOne(t, p, entity.ByID("covered"))

	err := p.Click(ctx, el)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "covered by div.overlay")

	require.NoError(t, p.DispatchEvent(ctx, el, "click"))
	events := p.Events()
	assert.Equal(t, "dispatch-click", events[len(events)-1].Type)
}

func TestPage_Click_Disabled(t *testing.T) {
	p := newSearchPage(t)
	err := p.Click(context.Background(), findOne(t, p, entity.ByID("disabled")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestPage_FillTypeAndSetValue(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)
	company := findOne(t, p, entity.ByID("company"))

	require.NoError(t, p.Fill(ctx, company, "Acme"))
	require.NoError(t, p.Type(ctx, company, " Inc"))
	v, ok, err := p.GetAttribute(ctx, company, "value")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Acme Inc", v)

	notes := findOne(t, p, entity.ByID("notes"))
	require.NoError(t, p.SetValue(ctx, notes, "new"))
	text, err := p.GetText(ctx, notes)
	require.NoError(t, err)
	assert.Equal(t, "new", text)

	err = p.Fill(ctx, findOne(t, p, entity.ByID("reset")), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not editable")
}

func TestPage_CheckedState(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)

	active := findOne(t, p, entity.ByID("active"))
	require.NoError(t, p.SetChecked(ctx, active, true))
	checked, err := p.IsChecked(ctx, active)
	require.NoError(t, err)
	assert.True(t, checked)

	// Setting the same state again is a no-op.
	require.NoError(t, p.SetChecked(ctx, active, true))
	checked, err = p.IsChecked(ctx, active)
	require.NoError(t, err)
	assert.True(t, checked)

	fancy := findOne(t, p, entity.ByID("fancy"))
	require.NoError(t, p.Press(ctx, fancy, "Space"))
	checked, err = p.IsChecked(ctx, fancy)
	require.NoError(t, err)
	assert.True(t, checked)

	radios, err := p.FindAll(ctx, entity.ByCSS(`input[name="kind"]`), nil)
	require.NoError(t, err)
	require.Len(t, radios, 2)
	require.NoError(t, p.Click(ctx, radios[1]))
	first, err := p.IsChecked(ctx, radios[0])
	require.NoError(t, err)
	assert.False(t, first)
}

func TestPage_SelectOption(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)
	country := findOne(t, p, entity.ByID("country"))

	require.NoError(t, p.SelectOption(ctx, country, "France"))
	selected := findOne(t, p, entity.ByCSS("#country option[selected]"))
	v, _, err := p.GetAttribute(ctx, selected, "value")
	require.NoError(t, err)
	assert.Equal(t, "fr", v)

	err = p.SelectOption(ctx, country, "Spain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Spain"`)
}

func TestPage_NewPageOpened(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)

	var opened []output.PagePort
	unsubscribe := p.OnNewPageOpened(func(np output.PagePort) { opened = append(opened, np) })
	assert.Equal(t, 1, p.Listeners())

	require.NoError(t, p.Click(ctx, findOne(t, p, entity.ByID("docs"))))
	require.Len(t, opened, 1)
	url, err := opened[0].CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/docs", url)

	current, err := p.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/", current)

	unsubscribe()
	assert.Equal(t, 0, p.Listeners())
	require.NoError(t, p.Click(ctx, findOne(t, p, entity.ByID("open"))))
	assert.Len(t, opened, 1)
}

func TestPage_After(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)

	p.After(20*time.Millisecond, func(doc *goquery.Document) {
		doc.Find("#hidden-panel").RemoveAttr("style")
	})

	el := findOne(t, p, entity.ByCSS("#hidden-panel button"))
	assert.Eventually(t, func() bool {
		visible, err := p.IsVisible(ctx, el)
		return err == nil && visible
	}, time.Second, 5*time.Millisecond)
}

func TestPage_Navigate(t *testing.T) {
	ctx := context.Background()
	p := newSearchPage(t)

	require.NoError(t, p.Navigate(ctx, "/docs"))
	html, err := p.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Docs</h1>")

	assert.Error(t, p.Navigate(ctx, "/nowhere"))

	_, err = p.Screenshot(ctx)
	assert.ErrorIs(t, err, ErrNoScreenshot)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Navigate(ctx, "/"), ErrClosed)
}
