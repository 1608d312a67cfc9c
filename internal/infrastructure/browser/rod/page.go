package rod

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

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

var keys = map[string]input.Key{
	"Enter":     input.Enter,
	"Space":     input.Space,
	" ":         input.Space,
	"Tab":       input.Tab,
	"Escape":    input.Escape,
	"Backspace": input.Backspace,
	"ArrowDown": input.ArrowDown,
	"ArrowUp":   input.ArrowUp,
}

type element struct {
	el     *rod.Element
	target proto.TargetTargetID
}

func (e *element) String() string {
	return e.el.String()
}

// Page adapts a rod tab to output.PagePort.
type Page struct {
	browser *BrowserAdapter
	page    *rod.Page

	mu        sync.Mutex
	listeners map[int]func(output.PagePort)
	nextID    int
	stop      context.CancelFunc
	closed    bool
}

func newPage(b *BrowserAdapter, p *rod.Page) *Page {
	watchCtx, cancel := context.WithCancel(context.Background())
	pg := &Page{
		browser:   b,
		page:      p,
		listeners: make(map[int]func(output.PagePort)),
		stop:      cancel,
	}

	wait := b.browser.Context(watchCtx).EachEvent(func(e *proto.TargetTargetCreated) {
		info := e.TargetInfo
		if info.OpenerID != p.TargetID || info.Type != proto.TargetTargetInfoTypePage {
			return
		}
		go pg.adopt(info.TargetID)
	})
	go wait()
	return pg
}

func (p *Page) adopt(id proto.TargetTargetID) {
	child, err := p.browser.browser.PageFromTarget(id)
	if err != nil {
		p.browser.logger.Warn("Failed to attach to opened page", "target", id, "error", err)
		return
	}
	opened := newPage(p.browser, child)

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

// bound applies the browser timeout to calls made without a deadline.
func (p *Page) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.browser.timeout)
}

func (p *Page) element(ctx context.Context, h entity.ElementHandle) (*rod.Element, error) {
	e, ok := h.(*element)
	if !ok || e.target != p.page.TargetID {
		return nil, ErrForeignHandle
	}
	return e.el.Context(ctx), nil
}

func (p *Page) eval(ctx context.Context, h entity.ElementHandle, js string, args ...interface{}) (gson.JSON, error) {
	el, err := p.element(ctx, h)
	if err != nil {
		return gson.New(nil), err
	}
	res, err := el.Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *Page) FindAll(ctx context.Context, sel entity.Selector, scope entity.ElementHandle) ([]entity.ElementHandle, error) {
	expr, isXPath, err := locator.Native(sel)
	if err != nil {
		return nil, err
	}

	var els rod.Elements
	switch {
	case scope != nil:
		root, err := p.element(ctx, scope)
		if err != nil {
			return nil, err
		}
		if isXPath {
			els, err = root.ElementsX(locator.Relative(expr))
		} else {
			els, err = root.Elements(expr)
		}
		if err != nil {
			return nil, err
		}
	case isXPath:
		els, err = p.page.Context(ctx).ElementsX(expr)
	default:
		els, err = p.page.Context(ctx).Elements(expr)
	}
	if err != nil {
		return nil, err
	}

	out := make([]entity.ElementHandle, len(els))
	for i, el := range els {
		out[i] = &element{el: el.Context(context.Background()), target: p.page.TargetID}
	}
	return out, nil
}

func (p *Page) IsVisible(ctx context.Context, h entity.ElementHandle) (bool, error) {
	el, err := p.element(ctx, h)
	if err != nil {
		return false, err
	}
	return el.Visible()
}

func (p *Page) IsAttached(ctx context.Context, h entity.ElementHandle) (bool, error) {
	v, err := p.eval(ctx, h, locator.IsAttachedJS)
	if err != nil {
		var notFound *rod.ObjectNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return v.Bool(), nil
}

// interactable fails fast on covered elements instead of waiting for the
// cover to go away like rod's own actions do.
func interactable(el *rod.Element) error {
	if err := el.ScrollIntoView(); err != nil {
		return err
	}
	_, err := el.Interactable()
	return err
}

func (p *Page) Click(ctx context.Context, h entity.ElementHandle) error {
	el, err := p.element(ctx, h)
	if err != nil {
		return err
	}
	if err := interactable(el); err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *Page) Fill(ctx context.Context, h entity.ElementHandle, text string) error {
	el, err := p.element(ctx, h)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text: %w", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, h entity.ElementHandle, text string) error {
	el, err := p.element(ctx, h)
	if err != nil {
		return err
	}
	typed := make([]input.Key, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		if r > 127 {
			return el.Input(text)
		}
		typed = append(typed, input.Key(r))
	}
	return el.Type(typed...)
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
	v, err := p.eval(ctx, h, locator.IsCheckedJS)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func (p *Page) Hover(ctx context.Context, h entity.ElementHandle) error {
	el, err := p.element(ctx, h)
	if err != nil {
		return err
	}
	if err := interactable(el); err != nil {
		return err
	}
	return el.Hover()
}

func (p *Page) SelectOption(ctx context.Context, h entity.ElementHandle, value string) error {
	v, err := p.eval(ctx, h, locator.SelectOptionJS, value)
	if err != nil {
		return err
	}
	if !v.Bool() {
		return fmt.Errorf("option %q not found", value)
	}
	return nil
}

func (p *Page) Focus(ctx context.Context, h entity.ElementHandle) error {
	el, err := p.element(ctx, h)
	if err != nil {
		return err
	}
	return el.Focus()
}

func (p *Page) Press(ctx context.Context, h entity.ElementHandle, key string) error {
	el, err := p.element(ctx, h)
	if err != nil {
		return err
	}
	k, ok := keys[key]
	if !ok {
		r, size := utf8.DecodeRuneInString(key)
		if size != len(key) || r > 127 {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		k = input.Key(r)
	}
	return el.Type(k)
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
	if v.Nil() {
		return "", false, nil
	}
	return v.Str(), true, nil
}

func (p *Page) GetText(ctx context.Context, h entity.ElementHandle) (string, error) {
	v, err := p.eval(ctx, h, locator.TextJS)
	if err != nil {
		return "", err
	}
	return locator.NormalizeSpace(v.Str()), nil
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wait := p.page.Context(ctx).WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	wait()
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

func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	img, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
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

	p.stop()
	return p.page.Close()
}
