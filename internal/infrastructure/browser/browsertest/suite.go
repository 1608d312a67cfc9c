// Package browsertest holds the behaviour every real-browser PagePort must
// share, run against pages served by httptest.
package browsertest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
)

// Opener returns a fresh page for one test. It should skip the test when the
// provider cannot run here.
type Opener func(t *testing.T) output.PagePort

// Serve starts a server answering the given paths with HTML bodies.
func Serve(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

// Run exercises a provider's page port end to end.
func Run(t *testing.T, open Opener) {
	t.Run("NavigateAndFind", func(t *testing.T) { testNavigateAndFind(t, open) })
	t.Run("Form", func(t *testing.T) { testForm(t, open) })
	t.Run("CoveredClickFailsFast", func(t *testing.T) { testCoveredClick(t, open) })
	t.Run("ScopeAndNewPage", func(t *testing.T) { testScopeAndNewPage(t, open) })
	t.Run("ForeignHandle", func(t *testing.T) { testForeignHandle(t, open) })
}

func load(t *testing.T, open Opener, pages map[string]string, path string) (output.PagePort, string) {
	t.Helper()
	page := open(t)
	t.Cleanup(func() { _ = page.Close() })
	server := Serve(t, pages)
	require.NoError(t, page.Navigate(context.Background(), server.URL+path))
	return page, server.URL
}

func find(t *testing.T, page output.PagePort, sel entity.Selector) entity.ElementHandle {
	t.Helper()
	els, err := page.FindAll(context.Background(), sel, nil)
	require.NoError(t, err)
	require.NotEmpty(t, els, sel.String())
	return els[0]
}

func testNavigateAndFind(t *testing.T, open Opener) {
	page, base := load(t, open, map[string]string{"/": BasicHTML}, "/")
	ctx := context.Background()

	url, err := page.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, base+"/", url)

	h1 := find(t, page, entity.ByText("hello world"))
	text, err := page.GetText(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", text)

	visible, err := page.IsVisible(ctx, h1)
	require.NoError(t, err)
	assert.True(t, visible)

	attached, err := page.IsAttached(ctx, h1)
	require.NoError(t, err)
	assert.True(t, attached)

	els, err := page.FindAll(ctx, entity.ByID("missing"), nil)
	require.NoError(t, err)
	assert.Empty(t, els)

	html, err := page.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Hello World</h1>")

	shot, err := page.Screenshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, shot)

	assert.NoError(t, page.WaitForNetworkIdle(ctx, 5*time.Second))
}

func testForm(t *testing.T, open Opener) {
	page, _ := load(t, open, map[string]string{"/": FormHTML}, "/")
	ctx := context.Background()

	user := find(t, page, entity.ByPlaceholder("User"))
	require.NoError(t, page.Fill(ctx, user, "alice"))
	value, ok, err := page.GetAttribute(ctx, user, "value")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", value)

	log := find(t, page, entity.ByID("log"))
	text, err := page.GetText(ctx, log)
	require.NoError(t, err)
	assert.Equal(t, "input:alice", text)

	require.NoError(t, page.SetValue(ctx, user, ""))
	require.NoError(t, page.Type(ctx, user, "bob"))
	value, _, err = page.GetAttribute(ctx, user, "value")
	require.NoError(t, err)
	assert.Equal(t, "bob", value)

	remember := find(t, page, entity.ByRole("checkbox", ""))
	require.NoError(t, page.SetChecked(ctx, remember, true))
	checked, err := page.IsChecked(ctx, remember)
	require.NoError(t, err)
	assert.True(t, checked)
	require.NoError(t, page.SetChecked(ctx, remember, true))
	checked, err = page.IsChecked(ctx, remember)
	require.NoError(t, err)
	assert.True(t, checked, "setting the current state is a no-op")

	country := find(t, page, entity.ByID("country"))
	require.NoError(t, page.SelectOption(ctx, country, "Germany"))
	value, _, err = page.GetAttribute(ctx, country, "value")
	require.NoError(t, err)
	assert.Equal(t, "de", value)
	assert.Error(t, page.SelectOption(ctx, country, "Mars"))

	_, ok, err = page.GetAttribute(ctx, user, "data-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testCoveredClick(t *testing.T, open Opener) {
	page, _ := load(t, open, map[string]string{"/": CoveredHTML}, "/")
	ctx := context.Background()
	btn := find(t, page, entity.ByID("btn"))

	start := time.Now()
	assert.Error(t, page.Click(ctx, btn))
	assert.Less(t, time.Since(start), 5*time.Second)

	require.NoError(t, page.DispatchEvent(ctx, btn, "click"))
	text, err := page.GetText(ctx, find(t, page, entity.ByID("result")))
	require.NoError(t, err)
	assert.Equal(t, "Clicked!", text)
}

func testScopeAndNewPage(t *testing.T, open Opener) {
	page, _ := load(t, open, map[string]string{"/": PopupHTML, "/popup": BasicHTML}, "/")
	ctx := context.Background()

	list := find(t, page, entity.ByID("list"))
	items, err := page.FindAll(ctx, entity.ByXPath("//p"), list)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	opened := make(chan output.PagePort, 1)
	unsubscribe := page.OnNewPageOpened(func(p output.PagePort) { opened <- p })
	defer unsubscribe()

	require.NoError(t, page.Click(ctx, find(t, page, entity.ByID("open"))))
	select {
	case child := <-opened:
		defer child.Close()
		assert.Eventually(t, func() bool {
			url, err := child.CurrentURL(ctx)
			return err == nil && strings.HasSuffix(url, "/popup")
		}, 5*time.Second, 100*time.Millisecond)
	case <-time.After(5 * time.Second):
		t.Fatal("no page opened")
	}
}

func testForeignHandle(t *testing.T, open Opener) {
	page, _ := load(t, open, map[string]string{"/": BasicHTML}, "/")
	err := page.Click(context.Background(), fakeHandle{})
	assert.Error(t, err)
}

type fakeHandle struct{}

func (fakeHandle) String() string { return "<fake>" }
