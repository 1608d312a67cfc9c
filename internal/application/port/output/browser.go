package output

import (
	"context"
	"time"

	"resilient-ui/internal/domain/entity"
)

// PagePort is the capability contract of a browser-automation provider for a
// single page. Handles passed in must come from FindAll on the same page.
type PagePort interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)

	FindAll(ctx context.Context, sel entity.Selector, scope entity.ElementHandle) ([]entity.ElementHandle, error)
	IsVisible(ctx context.Context, el entity.ElementHandle) (bool, error)
	IsAttached(ctx context.Context, el entity.ElementHandle) (bool, error)

	Click(ctx context.Context, el entity.ElementHandle) error
	Fill(ctx context.Context, el entity.ElementHandle, text string) error
	Type(ctx context.Context, el entity.ElementHandle, text string) error
	SetValue(ctx context.Context, el entity.ElementHandle, value string) error
	SetChecked(ctx context.Context, el entity.ElementHandle, checked bool) error
	IsChecked(ctx context.Context, el entity.ElementHandle) (bool, error)
	Hover(ctx context.Context, el entity.ElementHandle) error
	SelectOption(ctx context.Context, el entity.ElementHandle, value string) error
	Focus(ctx context.Context, el entity.ElementHandle) error
	Press(ctx context.Context, el entity.ElementHandle, key string) error
	DispatchEvent(ctx context.Context, el entity.ElementHandle, event string) error

	GetAttribute(ctx context.Context, el entity.ElementHandle, name string) (string, bool, error)
	GetText(ctx context.Context, el entity.ElementHandle) (string, error)

	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	// OnNewPageOpened registers fn for pages opened by this one (popups,
	// target=_blank). The returned func removes the subscription.
	OnNewPageOpened(fn func(PagePort)) (unsubscribe func())

	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

type BrowserPort interface {
	NewPage(ctx context.Context) (PagePort, error)
	Close()
}
