// Package static implements output.PagePort over an in-memory HTML document.
// It has no layout engine: visibility comes from the hidden attribute, inline
// display and visibility styles, and non-rendered elements. Clicks toggle
// checkboxes, follow links inside the site and run registered handlers.
package static

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
	"resilient-ui/internal/infrastructure/browser/locator"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	ErrClosed        = errors.New("page is closed")
	ErrForeignHandle = errors.New("element handle does not belong to this page")
	ErrNoScreenshot  = errors.New("static pages cannot be captured as images")
	ErrXPath         = errors.New("xpath selectors are not supported on static pages")
)

// Handler mutates the document in response to an event on target. It runs
// with the page locked and must not call back into the page.
type Handler func(doc *goquery.Document, target *goquery.Selection)

type Event struct {
	Type   string
	Target string
	Value  string
}

type handler struct {
	event   string
	matcher cascadia.Selector
	fn      Handler
}

type Page struct {
	mu        sync.Mutex
	doc       *goquery.Document
	url       string
	site      map[string]string
	handlers  []handler
	listeners map[int]func(output.PagePort)
	nextID    int
	events    []Event
	timers    []*time.Timer
	focused   *html.Node
	closed    bool
}

var _ output.PagePort = (*Page)(nil)

// New parses markup into a page at about:blank.
func New(markup string) (*Page, error) {
	return NewSite(map[string]string{"about:blank": markup}, "about:blank")
}

// NewSite creates a page over a set of documents keyed by URL and opens start.
// Links and popups between pages of the same site resolve against this map.
func NewSite(site map[string]string, start string) (*Page, error) {
	p := &Page{
		site:      site,
		listeners: make(map[int]func(output.PagePort)),
	}
	if err := p.load(start); err != nil {
		return nil, err
	}
	return p, nil
}

// MustNew is New for tests and fixtures with known-good markup.
func MustNew(markup string) *Page {
	p, err := New(markup)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Page) load(url string) error {
	markup, ok := p.site[url]
	if !ok {
		return fmt.Errorf("no document at %s", url)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", url, err)
	}
	p.doc = doc
	p.url = url
	p.focused = nil
	return nil
}

// On registers fn for events of the given type whose target is, or is inside,
// an element matching css.
func (p *Page) On(event, css string, fn Handler) error {
	m, err := cascadia.Compile(css)
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", css, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler{event: event, matcher: m, fn: fn})
	return nil
}

func (p *Page) OnClick(css string, fn Handler) error {
	return p.On("click", css, fn)
}

// Mutate applies fn to the document now.
func (p *Page) Mutate(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// After applies fn to the document once d has elapsed, unless the page is
// closed first.
func (p *Page) After(d time.Duration, fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc := p.doc
	t := time.AfterFunc(d, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed || p.doc != doc {
			return
		}
		fn(p.doc)
	})
	p.timers = append(p.timers, t)
}

// Events returns the interactions performed so far, oldest first.
func (p *Page) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return p.load(url)
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) FindAll(ctx context.Context, sel entity.Selector, scope entity.ElementHandle) ([]entity.ElementHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	root := p.doc.Selection
	if scope != nil {
		n, err := p.node(scope)
		if err != nil {
			return nil, err
		}
		root = goquery.NewDocumentFromNode(n).Selection
	}

	nodes, err := p.match(root, sel)
	if err != nil {
		return nil, err
	}
	out := make([]entity.ElementHandle, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{node: n, page: p}
	}
	return out, nil
}

func (p *Page) match(root *goquery.Selection, sel entity.Selector) ([]*html.Node, error) {
	switch sel.Kind {
	case entity.SelectorXPath:
		return nil, ErrXPath
	case entity.SelectorText:
		return innermostText(root, sel.Value, sel.Exact), nil
	case entity.SelectorRole:
		if sel.Name != "" {
			found, err := find(root, locator.RoleCSS(sel.Value))
			if err != nil {
				return nil, err
			}
			var out []*html.Node
			for _, n := range found {
				if hasAccessibleName(n, sel.Name, sel.Exact) {
					out = append(out, n)
				}
			}
			return out, nil
		}
	}

	css, err := locator.CSS(sel)
	if err != nil {
		return nil, err
	}
	return find(root, css)
}

func find(root *goquery.Selection, css string) ([]*html.Node, error) {
	m, err := cascadia.Compile(css)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", css, err)
	}
	return root.FindMatcher(m).Nodes, nil
}

func innermostText(root *goquery.Selection, want string, exact bool) []*html.Node {
	var out []*html.Node
	root.Find("*").Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		if !rendered(n) || !locator.MatchText(textOf(n), want, exact) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && containsText(c, want, exact) {
				return
			}
		}
		out = append(out, n)
	})
	return out
}

func containsText(n *html.Node, want string, exact bool) bool {
	if locator.MatchText(textOf(n), want, exact) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && containsText(c, want, exact) {
			return true
		}
	}
	return false
}

func hasAccessibleName(n *html.Node, name string, exact bool) bool {
	if locator.MatchText(textOf(n), name, exact) {
		return true
	}
	if v, ok := attr(n, "aria-label"); ok && locator.MatchText(v, name, exact) {
		return true
	}
	if v, ok := attr(n, "value"); ok && locator.MatchText(v, name, exact) {
		return true
	}
	return false
}

func (p *Page) IsVisible(ctx context.Context, el entity.ElementHandle) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return false, err
	}
	return p.attached(n) && visible(n), nil
}

func (p *Page) IsAttached(ctx context.Context, el entity.ElementHandle) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return false, err
	}
	return p.attached(n), nil
}

func (p *Page) Click(ctx context.Context, el entity.ElementHandle) error {
	opened, err := p.withActionable(ctx, el, "click", func(n *html.Node) error {
		if by, ok := attr(n, "data-covered"); ok {
			if by == "" {
				by = "another element"
			}
			return fmt.Errorf("element %s is covered by %s", describe(n), by)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.notify(opened)
	return nil
}

// withActionable locks the page, checks n is attached, visible and enabled,
// runs extra checks and performs a click, returning pages it opened.
func (p *Page) withActionable(ctx context.Context, el entity.ElementHandle, event string, check func(*html.Node) error) ([]*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.actionable(el)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(n); err != nil {
			return nil, err
		}
	}
	return p.click(n, event), nil
}

func (p *Page) actionable(el entity.ElementHandle) (*html.Node, error) {
	if p.closed {
		return nil, ErrClosed
	}
	n, err := p.node(el)
	if err != nil {
		return nil, err
	}
	if !p.attached(n) {
		return nil, fmt.Errorf("element %s is detached", describe(n))
	}
	if !visible(n) {
		return nil, fmt.Errorf("element %s is not visible", describe(n))
	}
	if _, disabled := attr(n, "disabled"); disabled {
		return nil, fmt.Errorf("element %s is disabled", describe(n))
	}
	return n, nil
}

// click performs the default activation of n and runs click handlers.
// Callers hold the lock.
func (p *Page) click(n *html.Node, event string) []*Page {
	p.record(event, n, "")
	p.focused = n

	if n.Data == "input" {
		switch inputType(n) {
		case "checkbox":
			setBool(n, "checked", !hasAttr(n, "checked"))
		case "radio":
			p.checkRadio(n)
		}
	} else if role, _ := attr(n, "role"); role == "checkbox" {
		v, _ := attr(n, "aria-checked")
		setAttr(n, "aria-checked", fmt.Sprint(v != "true"))
	}

	doc := p.doc
	p.dispatch("click", n)
	if p.doc != doc {
		return nil
	}

	var opened []*Page
	if a := closestAnchor(n); a != nil {
		href, _ := attr(a, "href")
		if target, _ := attr(a, "target"); target == "_blank" {
			opened = append(opened, p.spawn(href))
		} else if _, ok := p.site[href]; ok {
			_ = p.load(href)
		}
	}
	if url, ok := attr(n, "data-opens"); ok {
		opened = append(opened, p.spawn(url))
	}
	return opened
}

func (p *Page) checkRadio(n *html.Node) {
	name, _ := attr(n, "name")
	if name != "" {
		for _, other := range p.doc.Find(`input[type="radio"]`).Nodes {
			if v, _ := attr(other, "name"); v == name {
				removeAttr(other, "checked")
			}
		}
	}
	setBool(n, "checked", true)
}

// dispatch runs handlers for event on n and its ancestors, innermost first.
func (p *Page) dispatch(event string, n *html.Node) {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		for _, h := range p.handlers {
			if h.event == event && h.matcher.Match(cur) {
				h.fn(p.doc, p.doc.FindNodes(n))
			}
		}
	}
}

func (p *Page) spawn(url string) *Page {
	child := &Page{
		site:      p.site,
		listeners: make(map[int]func(output.PagePort)),
	}
	if err := child.load(url); err != nil {
		doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
		child.doc = doc
		child.url = url
	}
	return child
}

func (p *Page) notify(opened []*Page) {
	if len(opened) == 0 {
		return
	}
	p.mu.Lock()
	fns := make([]func(output.PagePort), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, child := range opened {
		for _, fn := range fns {
			fn(child)
		}
	}
}

func (p *Page) Fill(ctx context.Context, el entity.ElementHandle, text string) error {
	return p.edit(ctx, el, "fill", true, func(string) string { return text })
}

func (p *Page) Type(ctx context.Context, el entity.ElementHandle, text string) error {
	return p.edit(ctx, el, "type", true, func(current string) string { return current + text })
}

func (p *Page) SetValue(ctx context.Context, el entity.ElementHandle, value string) error {
	return p.edit(ctx, el, "set-value", false, func(string) string { return value })
}

func (p *Page) edit(ctx context.Context, el entity.ElementHandle, event string, trusted bool, next func(string) string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		n   *html.Node
		err error
	)
	if trusted {
		n, err = p.actionable(el)
		if err == nil {
			if _, ro := attr(n, "readonly"); ro {
				err = fmt.Errorf("element %s is read-only", describe(n))
			}
		}
	} else {
		if p.closed {
			return ErrClosed
		}
		n, err = p.node(el)
	}
	if err != nil {
		return err
	}
	if !editable(n) {
		return fmt.Errorf("element %s is not editable", describe(n))
	}

	value := next(valueOf(n))
	setValue(n, value)
	p.record(event, n, value)
	if trusted {
		p.focused = n
		p.dispatch("input", n)
		p.dispatch("change", n)
	}
	return nil
}

func (p *Page) SetChecked(ctx context.Context, el entity.ElementHandle, checked bool) error {
	var opened []*Page
	err := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		n, err := p.actionable(el)
		if err != nil {
			return err
		}
		if !checkable(n) {
			return fmt.Errorf("element %s is not a checkbox or radio", describe(n))
		}
		if isChecked(n) != checked {
			opened = p.click(n, "click")
		}
		return nil
	}()
	if err != nil {
		return err
	}
	p.notify(opened)
	return nil
}

func (p *Page) IsChecked(ctx context.Context, el entity.ElementHandle) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return false, err
	}
	if !checkable(n) {
		return false, fmt.Errorf("element %s is not a checkbox or radio", describe(n))
	}
	return isChecked(n), nil
}

func (p *Page) Hover(ctx context.Context, el entity.ElementHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return err
	}
	if !p.attached(n) || !visible(n) {
		return fmt.Errorf("element %s is not visible", describe(n))
	}
	if _, covered := attr(n, "data-covered"); covered {
		return fmt.Errorf("element %s is covered", describe(n))
	}
	p.record("hover", n, "")
	p.dispatch("mouseover", n)
	return nil
}

func (p *Page) SelectOption(ctx context.Context, el entity.ElementHandle, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.actionable(el)
	if err != nil {
		return err
	}
	if n.Data != "select" {
		return fmt.Errorf("element %s is not a select", describe(n))
	}

	options := goquery.NewDocumentFromNode(n).Find("option").Nodes
	var chosen *html.Node
	for _, o := range options {
		v, ok := attr(o, "value")
		if (ok && v == value) || locator.NormalizeSpace(textOf(o)) == locator.NormalizeSpace(value) {
			chosen = o
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("option %q not found in %s", value, describe(n))
	}
	for _, o := range options {
		removeAttr(o, "selected")
	}
	setBool(chosen, "selected", true)
	p.record("select", n, value)
	p.dispatch("change", n)
	return nil
}

func (p *Page) Focus(ctx context.Context, el entity.ElementHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return err
	}
	if !p.attached(n) {
		return fmt.Errorf("element %s is detached", describe(n))
	}
	p.focused = n
	p.record("focus", n, "")
	return nil
}

// Press sends key to el. Enter activates buttons and links, Space toggles
// buttons and checkboxes, single characters are typed into editable fields.
func (p *Page) Press(ctx context.Context, el entity.ElementHandle, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var opened []*Page
	err := func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		n, err := p.actionable(el)
		if err != nil {
			return err
		}
		p.focused = n
		p.record("press", n, key)

		switch key {
		case "Enter":
			if activatable(n) {
				opened = p.click(n, "keyboard-click")
			}
		case "Space", " ":
			if activatable(n) || checkable(n) {
				opened = p.click(n, "keyboard-click")
			}
		default:
			if len([]rune(key)) == 1 && editable(n) {
				setValue(n, valueOf(n)+key)
				p.dispatch("input", n)
			}
		}
		return nil
	}()
	if err != nil {
		return err
	}
	p.notify(opened)
	return nil
}

// DispatchEvent fires a synthetic event. A synthetic click skips the
// visibility and overlay checks a trusted click goes through.
func (p *Page) DispatchEvent(ctx context.Context, el entity.ElementHandle, event string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var opened []*Page
	err := func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return ErrClosed
		}
		n, err := p.node(el)
		if err != nil {
			return err
		}
		if !p.attached(n) {
			return fmt.Errorf("element %s is detached", describe(n))
		}
		if event == "click" {
			opened = p.click(n, "dispatch-click")
			return nil
		}
		p.record("dispatch-"+event, n, "")
		p.dispatch(event, n)
		return nil
	}()
	if err != nil {
		return err
	}
	p.notify(opened)
	return nil
}

func (p *Page) GetAttribute(ctx context.Context, el entity.ElementHandle, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return "", false, err
	}
	if name == "value" && editable(n) {
		return valueOf(n), true, nil
	}
	v, ok := attr(n, name)
	return v, ok, nil
}

func (p *Page) GetText(ctx context.Context, el entity.ElementHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return "", err
	}
	return locator.NormalizeSpace(textOf(n)), nil
}

// WaitForNetworkIdle returns at once: a static page never has requests in flight.
func (p *Page) WaitForNetworkIdle(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (p *Page) OnNewPageOpened(fn func(output.PagePort)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Listeners reports how many new-page subscriptions are active.
func (p *Page) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

func (p *Page) Screenshot(context.Context) ([]byte, error) {
	return nil, ErrNoScreenshot
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
	p.closed = true
	return nil
}

func (p *Page) node(el entity.ElementHandle) (*html.Node, error) {
	e, ok := el.(*Element)
	if !ok || e == nil || e.page != p {
		return nil, ErrForeignHandle
	}
	return e.node, nil
}

func (p *Page) attached(n *html.Node) bool {
	root := p.doc.Nodes[0]
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

func (p *Page) record(typ string, n *html.Node, value string) {
	p.events = append(p.events, Event{Type: typ, Target: describe(n), Value: value})
}
