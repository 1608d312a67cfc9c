// Package chromedp implements the page port on top of chromedp. Element
// handles are runtime object ids, so every element operation is a function
// call on the remote object.
package chromedp

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"resilient-ui/internal/application/port/output"
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

const defaultTimeout = 30 * time.Second

type BrowserConfig struct {
	Headless  bool
	NoSandbox bool
	// Timeout bounds a single CDP call made without a caller deadline.
	Timeout time.Duration
	// Bin is the browser executable; empty lets chromedp search the usual
	// install locations.
	Bin string
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless: true,
		Timeout:  defaultTimeout,
	}
}

type BrowserAdapter struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      output.LoggerPort
	timeout     time.Duration
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig, logger output.LoggerPort) (*BrowserAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1280, 900),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.Bin != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Bin))
	}

	// The browser outlives ctx; ctx only bounds the launch.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(browserCtx) }()
	select {
	case err := <-launched:
		if err != nil {
			cancel()
			allocCancel()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	case <-ctx.Done():
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", ctx.Err())
	}

	logger.Info("Browser launched", "provider", "chromedp", "headless", cfg.Headless)
	return &BrowserAdapter{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
		timeout:     cfg.Timeout,
	}, nil
}

func (b *BrowserAdapter) NewPage(ctx context.Context) (output.PagePort, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	if err := b.attach(ctx, tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return newPage(b, tabCtx, cancel), nil
}

// attach runs the first action on a tab context, which creates or attaches
// the target, giving up when ctx ends.
func (b *BrowserAdapter) attach(ctx context.Context, tabCtx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(tabCtx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BrowserAdapter) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}
