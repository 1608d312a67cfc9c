package playwright

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

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
	"Enter":     "Enter",
	"Space":     " ",
	" ":         " ",
	"Tab":       "Tab",
	"Escape":    "Escape",
	"Backspace": "Backspace",
	"ArrowDown": "ArrowDown",
	"ArrowUp":   "ArrowUp",
}

// pointJS reports why a trusted pointer event would miss this, or "".
const pointJS = `function () {
  this.scrollIntoView({ block: 'center', inline: 'center' });
  if (this.disabled === true) return 'disabled';
  const r = this.getBoundingClientRect();
  if (r.width === 0 || r.height === 0) return 'has no size';
  return '';
}`

type element struct {
	handle playwright.ElementHandle
	page   playwright.Page
	desc   string
}

func (e *element) String() string {
	return e.desc
}

// Page adapts a playwright page to output.PagePort. Playwright calls take no
// context, so deadlines become per-call timeouts.
type Page struct {
	browser *BrowserAdapter
	page    playwright.Page

	mu        sync.Mutex
	listeners map[int]func(output.PagePort)
	nextID    int
	closed    bool
}

func newPage(b *BrowserAdapter, p playwright.Page) *Page {
	pg := &Page{
		browser:   b,
		page:      p,
		listeners: make(map[int]func(output.PagePort)),
	}
	p.OnPopup(func(child playwright.Page) {
		opened := newPage(b, child)

		pg.mu.Lock()
		fns := make([]func(output.PagePort), 0, len(pg.listeners))
		for _, fn := range pg.listeners {
			fns = append(fns, fn)
		}
		pg.mu.Unlock()

		for _, fn := range fns {
			fn(opened)
		}
	})
	return pg
}

// timeout converts the caller deadline into playwright milliseconds.
func (p *Page) timeout(ctx context.Context) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := p.browser.timeout
	if deadline, ok := ctx.Deadline(); ok {
		d = time.Until(deadline)
		if d <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	return playwright.Float(float64(d.Milliseconds())), nil
}

// await runs a call that takes no timeout and gives up when ctx ends.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Page) element(h entity.ElementHandle) (*element, error) {
	e, ok := h.(*element)
	if !ok || e.page != p.page {
		return nil, ErrForeignHandle
	}
	return e, nil
}

// eval calls a shared page script with the element bound to this.
func (p *Page) eval(ctx context.Context, h entity.ElementHandle, fn string, arg any) (any, error) {
	e, err := p.element(h)
	if err != nil {
		return nil, err
	}
	return evalHandle(ctx, e.handle, fn, arg)
}

func evalHandle(ctx context.Context, handle playwright.ElementHandle, fn string, arg any) (any, error) {
	expr := fmt.Sprintf("(el, arg) => (%s).call(el, arg)", fn)
	return await(ctx, func() (any, error) {
		return handle.Evaluate(expr, arg)
	})
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	timeout, err := p.timeout(ctx)
	if err != nil {
		return err
	}
	_, err = p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeout,
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *Page) FindAll(ctx context.Context, sel entity.Selector, scope entity.ElementHandle) ([]entity.ElementHandle, error) {
	expr, isXPath, err := locator.Native(sel)
	if err != nil {
		return nil, err
	}

	var handles []playwright.ElementHandle
	if scope != nil {
		root, err := p.element(scope)
		if err != nil {
			return nil, err
		}
		query := "css=" + expr
		if isXPath {
			query = "xpath=" + locator.Relative(expr)
		}
		handles, err = await(ctx, func() ([]playwright.ElementHandle, error) {
			return root.handle.QuerySelectorAll(query)
		})
		if err != nil {
			return nil, err
		}
	} else {
		query := "css=" + expr
		if isXPath {
			query = "xpath=" + expr
		}
		handles, err = await(ctx, func() ([]playwright.ElementHandle, error) {
			return p.page.QuerySelectorAll(query)
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]entity.ElementHandle, len(handles))
	for i, h := range handles {
		desc, err := evalHandle(ctx, h, locator.DescribeJS, nil)
		if err != nil {
			return nil, err
		}
		s, _ := desc.(string)
		out[i] = &element{handle: h, page: p.page, desc: s}
	}
	return out, nil
}

func (p *Page) IsVisible(ctx context.Context, h entity.ElementHandle) (bool, error) {
	v, err := p.eval(ctx, h, locator.IsVisibleJS, nil)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

func (p *Page) IsAttached(ctx context.Context, h entity.ElementHandle) (bool, error) {
	v, err := p.eval(ctx, h, locator.IsAttachedJS, nil)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "context was destroyed") || strings.Contains(msg, "disposed") {
			return false, nil
		}
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// interactable fails fast where playwright would wait for the element to
// become actionable.
func (p *Page) interactable(ctx context.Context, h entity.ElementHandle) error {
	v, err := p.eval(ctx, h, pointJS, nil)
	if err != nil {
		return err
	}
	if reason, _ := v.(string); reason != "" {
		return fmt.Errorf("element %s %s", h, reason)
	}
	v, err = p.eval(ctx, h, locator.CoveredByJS, nil)
	if err != nil {
		return err
	}
	if cover, _ := v.(string); cover != "" {
		return fmt.Errorf("element %s is covered by %s", h, cover)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, h entity.ElementHandle) error {
	e, err := p.element(h)
	if err != nil {
		return err
	}
	if err := p.interactable(ctx, h); err != nil {
		return err
	}
	timeout, err := p.timeout(ctx)
	if err != nil {
		return err
	}
	return e.handle.Click(playwright.ElementHandleClickOptions{Timeout: timeout})
}

func (p *Page) Fill(ctx context.Context, h entity.ElementHandle, text string) error {
	e, err := p.element(h)
	if err != nil {
		return err
	}
	timeout, err := p.timeout(ctx)
	if err != nil {
		return err
	}
	if err := e.handle.Fill(text, playwright.ElementHandleFillOptions{Timeout: timeout}); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, h entity.ElementHandle, text string) error {
	e, err := p.element(h)
	if err != nil {
		return err
	}
	timeout, err := p.timeout(ctx)
	if err != nil {
		return err
	}
	return e.handle.Type(text, playwright.ElementHandleTypeOptions{Timeout: timeout})
}

func (p *Page) SetValue(ctx context.Context, h entity.ElementHandle, value string) error {
	_, err := p.eval(ctx, h, locator.SetValueJS, value)
	return err
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
	v, err := p.eval(ctx, h, locator.IsCheckedJS, nil)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

func (p *Page) Hover(ctx context.Context, h entity.ElementHandle) error {
	e, err := p.element(h)
	if err != nil {
		return err
	}
	if err := p.interactable(ctx, h); err != nil {
		return err
	}
	timeout, err := p.timeout(ctx)
	if err != nil {
		return err
	}
	return e.handle.Hover(playwright.ElementHandleHoverOptions{Timeout: timeout})
}

func (p *Page) SelectOption(ctx context.Context, h entity.ElementHandle, value string) error {
	v, err := p.eval(ctx, h, locator.SelectOptionJS, value)
	if err != nil {
		return err
	}
	if ok, _ := v.(bool); !ok {
		return fmt.Errorf("option %q not found", value)
	}
	return nil
}

func (p *Page) Focus(ctx context.Context, h entity.ElementHandle) error {
	e, err := p.element(h)
	if err != nil {
		return err
	}
	_, err = await(ctx, func() (struct{}, error) {
		return struct{}{}, e.handle.Focus()
	})
	return err
}

func (p *Page) Press(ctx context.Context, h entity.ElementHandle, key string) error {
	e, err := p.element(h)
	if err != nil {
		return err
	}
	k, ok := keys[key]
	if !ok {
		if len([]rune(key)) != 1 {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		k = key
	}
	timeout, err := p.timeout(ctx)
	if err != nil {
		return err
	}
	return e.handle.Press(k, playwright.ElementHandlePressOptions{Timeout: timeout})
}

func (p *Page) DispatchEvent(ctx context.Context, h entity.ElementHandle, event string) error {
	_, err := p.eval(ctx, h, locator.DispatchJS, event)
	return err
}

func (p *Page) GetAttribute(ctx context.Context, h entity.ElementHandle, name string) (string, bool, error) {
	v, err := p.eval(ctx, h, locator.GetAttributeJS, name)
	if err != nil {
		return "", false, err
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (p *Page) GetText(ctx context.Context, h entity.ElementHandle) (string, error) {
	v, err := p.eval(ctx, h, locator.TextJS, nil)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return locator.NormalizeSpace(s), nil
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ms, err := p.timeout(ctx)
	if err != nil {
		return err
	}
	err = p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms,
	})
	if err != nil && errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
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
	return await(ctx, p.page.Content)
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	timeout, err := p.timeout(ctx)
	if err != nil {
		return nil, err
	}
	img, err := p.page.Screenshot(playwright.PageScreenshotOptions{Timeout: timeout})
	if err != nil {
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

	return p.page.Close()
}
