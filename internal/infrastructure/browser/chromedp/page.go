package chromedp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
	"resilient-ui/internal/infrastructure/browser/locator"
)

var (
	_ output.PagePort      = (*Page)(nil)
	_ entity.ElementHandle = (*element)(nil)

	ErrForeignHandle = errors.New("element handle belongs to another page")
	ErrUnknownKey    = errors.New("unknown key")
)

var keys = map[string]string{
	"Enter":     kb.Enter,
	"Space":     " ",
	"Tab":       kb.Tab,
	"Escape":    kb.Escape,
	"Backspace": kb.Backspace,
	"ArrowDown": kb.ArrowDown,
	"ArrowUp":   kb.ArrowUp,
}

const (
	// pointJS scrolls this into view and returns the point a trusted
	// pointer event should target.
	pointJS = `function () {
  this.scrollIntoView({ block: 'center', inline: 'center' });
  const r = this.getBoundingClientRect();
  return { x: r.left + r.width / 2, y: r.top + r.height / 2, w: r.width, h: r.height, disabled: this.disabled === true };
}`

	focusSelectJS = `function () {
  this.focus();
  if (typeof this.select === 'function') this.select();
  else if (this.isContentEditable) document.getSelection().selectAllChildren(this);
}`

	focusJS = `function () { this.focus(); }`

	queryAllJS = `function (s) { return Array.from(this.querySelectorAll(s)); }`

	idleJS = `document.readyState + ':' + performance.getEntriesByType('resource').length`
)

type element struct {
	id     runtime.RemoteObjectID
	target target.ID
	desc   string
}

func (e *element) String() string {
	return e.desc
}

type point struct {
	X, Y, W, H float64
	Disabled   bool
}

// Page adapts a chromedp tab context to output.PagePort.
type Page struct {
	browser *BrowserAdapter
	ctx     context.Context
	cancel  context.CancelFunc
	id      target.ID

	mu        sync.Mutex
	listeners map[int]func(output.PagePort)
	nextID    int
	closed    bool
}

func newPage(b *BrowserAdapter, tabCtx context.Context, cancel context.CancelFunc) *Page {
	pg := &Page{
		browser:   b,
		ctx:       tabCtx,
		cancel:    cancel,
		id:        chromedp.FromContext(tabCtx).Target.TargetID,
		listeners: make(map[int]func(output.PagePort)),
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		created, ok := ev.(*target.EventTargetCreated)
		if !ok {
			return
		}
		info := created.TargetInfo
		if info.OpenerID != pg.id || info.Type != "page" {
			return
		}
		// Listeners must not block the event loop.
		go pg.adopt(info.TargetID)
	})
	return pg
}

func (p *Page) adopt(id target.ID) {
	childCtx, cancel := chromedp.NewContext(p.browser.ctx, chromedp.WithTargetID(id))
	ctx, stop := context.WithTimeout(context.Background(), p.browser.timeout)
	defer stop()
	if err := p.browser.attach(ctx, childCtx); err != nil {
		cancel()
		p.browser.logger.Warn("Failed to attach to opened page", "target", id, "error", err)
		return
	}
	opened := newPage(p.browser, childCtx, cancel)

	p.mu.Lock()
	fns := make([]func(output.PagePort), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(opened)
	}
}

// run executes actions on the tab, bounded by ctx and the browser timeout.
// chromedp only honours the context the tab was created with, so the caller
// context is bridged in.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var stop context.CancelFunc
		runCtx, stop = context.WithDeadline(runCtx, deadline)
		defer stop()
	} else {
		var stop context.CancelFunc
		runCtx, stop = context.WithTimeout(runCtx, p.browser.timeout)
		defer stop()
	}
	unbridge := context.AfterFunc(ctx, cancel)
	defer unbridge()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (p *Page) element(h entity.ElementHandle) (*element, error) {
	e, ok := h.(*element)
	if !ok || e.target != p.id {
		return nil, ErrForeignHandle
	}
	return e, nil
}

func callArgs(args []any) ([]*runtime.CallArgument, error) {
	out := make([]*runtime.CallArgument, len(args))
	for i, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}
		out[i] = &runtime.CallArgument{Value: raw}
	}
	return out, nil
}

// call runs fn with this bound to obj and decodes its return value into out
// when out is non-nil.
func (p *Page) call(ctx context.Context, obj runtime.RemoteObjectID, fn string, out any, args ...any) error {
	params, err := callArgs(args)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj).
			WithArguments(params).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal(res.Value, out)
	}))
}

func (p *Page) callElement(ctx context.Context, h entity.ElementHandle, fn string, out any, args ...any) error {
	e, err := p.element(h)
	if err != nil {
		return err
	}
	return p.call(ctx, e.id, fn, out, args...)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (p *Page) FindAll(ctx context.Context, sel entity.Selector, scope entity.ElementHandle) ([]entity.ElementHandle, error) {
	expr, isXPath, err := locator.Native(sel)
	if err != nil {
		return nil, err
	}
	fn := queryAllJS
	if isXPath {
		fn = locator.XPathAllJS
	}

	var root runtime.RemoteObjectID
	if scope != nil {
		e, err := p.element(scope)
		if err != nil {
			return nil, err
		}
		root = e.id
		if isXPath {
			expr = locator.Relative(expr)
		}
	}

	params, err := callArgs([]any{expr})
	if err != nil {
		return nil, err
	}

	var out []entity.ElementHandle
	err = p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if root == "" {
			doc, exc, err := runtime.Evaluate("document").Do(ctx)
			if err != nil {
				return err
			}
			if exc != nil {
				return exc
			}
			root = doc.ObjectID
		}

		arr, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(root).
			WithArguments(params).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		defer func() { _ = runtime.ReleaseObject(arr.ObjectID).Do(ctx) }()

		props, _, _, exc, err := runtime.GetProperties(arr.ObjectID).WithOwnProperties(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}

		type indexed struct {
			i  int
			el *element
		}
		found := make([]indexed, 0, len(props))
		for _, prop := range props {
			i, err := strconv.Atoi(prop.Name)
			if err != nil || prop.Value == nil || prop.Value.ObjectID == "" {
				continue
			}
			found = append(found, indexed{i: i, el: &element{
				id:     prop.Value.ObjectID,
				target: p.id,
				desc:   "<" + prop.Value.Description + ">",
			}})
		}
		sort.Slice(found, func(a, b int) bool { return found[a].i < found[b].i })

		out = make([]entity.ElementHandle, len(found))
		for i, f := range found {
			out[i] = f.el
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Page) IsVisible(ctx context.Context, h entity.ElementHandle) (bool, error) {
	var visible bool
	err := p.callElement(ctx, h, locator.IsVisibleJS, &visible)
	return visible, err
}

func (p *Page) IsAttached(ctx context.Context, h entity.ElementHandle) (bool, error) {
	var attached bool
	err := p.callElement(ctx, h, locator.IsAttachedJS, &attached)
	if err != nil && staleObject(err) {
		return false, nil
	}
	return attached, err
}

// staleObject reports CDP errors for objects whose execution context is
// gone, usually after a navigation.
func staleObject(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Could not find object") ||
		strings.Contains(msg, "Cannot find context")
}

// pointer resolves where a trusted pointer event would land, failing when
// the element is disabled, has no box or sits under another element.
func (p *Page) pointer(ctx context.Context, h entity.ElementHandle) (point, error) {
	var pt point
	if err := p.callElement(ctx, h, pointJS, &pt); err != nil {
		return pt, err
	}
	if pt.Disabled {
		return pt, fmt.Errorf("element %s is disabled", h)
	}
	if pt.W == 0 || pt.H == 0 {
		return pt, fmt.Errorf("element %s has no size", h)
	}
	var cover string
	if err := p.callElement(ctx, h, locator.CoveredByJS, &cover); err != nil {
		return pt, err
	}
	if cover != "" {
		return pt, fmt.Errorf("element %s is covered by %s", h, cover)
	}
	return pt, nil
}

func (p *Page) Click(ctx context.Context, h entity.ElementHandle) error {
	pt, err := p.pointer(ctx, h)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.MouseClickXY(pt.X, pt.Y))
}

func (p *Page) Fill(ctx context.Context, h entity.ElementHandle, text string) error {
	if err := p.callElement(ctx, h, focusSelectJS, nil); err != nil {
		return fmt.Errorf("select text: %w", err)
	}
	var action chromedp.Action = input.InsertText(text)
	if text == "" {
		action = chromedp.KeyEvent(kb.Backspace)
	}
	if err := p.run(ctx, action); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, h entity.ElementHandle, text string) error {
	if err := p.Focus(ctx, h); err != nil {
		return err
	}
	return p.run(ctx, chromedp.KeyEvent(text))
}

func (p *Page) SetValue(ctx context.Context, h entity.ElementHandle, value string) error {
	return p.callElement(ctx, h, locator.SetValueJS, nil, value)
}

func (p *Page) SetChecked(ctx context.Context, h entity.ElementHandle, checked bool) error {
	current, err := p.IsChecked(ctx, h)
	if err != nil {
		return err
	}
	if current == checked {
		return nil
	}
	return p.Click(ctx, h)
}

func (p *Page) IsChecked(ctx context.Context, h entity.ElementHandle) (bool, error) {
	var checked bool
	err := p.callElement(ctx, h, locator.IsCheckedJS, &checked)
	return checked, err
}

func (p *Page) Hover(ctx context.Context, h entity.ElementHandle) error {
	pt, err := p.pointer(ctx, h)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.MouseEvent(input.MouseMoved, pt.X, pt.Y))
}

func (p *Page) SelectOption(ctx context.Context, h entity.ElementHandle, value string) error {
	var ok bool
	if err := p.callElement(ctx, h, locator.SelectOptionJS, &ok, value); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("option %q not found", value)
	}
	return nil
}

func (p *Page) Focus(ctx context.Context, h entity.ElementHandle) error {
	return p.callElement(ctx, h, focusJS, nil)
}

func (p *Page) Press(ctx context.Context, h entity.ElementHandle, key string) error {
	k, ok := keys[key]
	if !ok {
		if len([]rune(key)) != 1 {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		k = key
	}
	if err := p.Focus(ctx, h); err != nil {
		return err
	}
	return p.run(ctx, chromedp.KeyEvent(k))
}

func (p *Page) DispatchEvent(ctx context.Context, h entity.ElementHandle, event string) error {
	return p.callElement(ctx, h, locator.DispatchJS, nil, event)
}

func (p *Page) GetAttribute(ctx context.Context, h entity.ElementHandle, name string) (string, bool, error) {
	var v *string
	if err := p.callElement(ctx, h, locator.GetAttributeJS, &v, name); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (p *Page) GetText(ctx context.Context, h entity.ElementHandle) (string, error) {
	var text string
	if err := p.callElement(ctx, h, locator.TextJS, &text); err != nil {
		return "", err
	}
	return locator.NormalizeSpace(text), nil
}

// WaitForNetworkIdle polls until the document is loaded and no new resource
// entries appeared for a quiet window.
func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	const quiet = 300 * time.Millisecond

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last string
	stableSince := time.Now()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		var state string
		if err := p.run(ctx, chromedp.Evaluate(idleJS, &state)); err != nil {
			return err
		}
		if state != last {
			last = state
			stableSince = time.Now()
		} else if strings.HasPrefix(state, "complete:") && time.Since(stableSince) >= quiet {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
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

func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var img []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&img)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return img, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	return nil
}
