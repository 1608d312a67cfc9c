// Package playwright implements the page port with playwright-go. It needs
// the playwright driver and a Chromium build installed.
package playwright

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"resilient-ui/internal/application/port/output"
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

const defaultTimeout = 30 * time.Second

type BrowserConfig struct {
	Headless  bool
	NoSandbox bool
	Timeout   time.Duration
	// Bin overrides the bundled Chromium.
	Bin string
	// Install downloads the driver and Chromium when missing.
	Install bool
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless: true,
		Timeout:  defaultTimeout,
	}
}

type BrowserAdapter struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  output.LoggerPort
	timeout time.Duration
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig, logger output.LoggerPort) (*BrowserAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runOpts := &playwright.RunOptions{Browsers: []string{"chromium"}}
	if cfg.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless:        playwright.Bool(cfg.Headless),
		ChromiumSandbox: playwright.Bool(!cfg.NoSandbox),
	}
	if cfg.Bin != "" {
		launch.ExecutablePath = playwright.String(cfg.Bin)
	}
	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1280, Height: 900},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	bctx.SetDefaultTimeout(float64(cfg.Timeout.Milliseconds()))

	logger.Info("Browser launched", "provider", "playwright", "headless", cfg.Headless)
	return &BrowserAdapter{
		pw:      pw,
		browser: browser,
		context: bctx,
		logger:  logger,
		timeout: cfg.Timeout,
	}, nil
}

func (b *BrowserAdapter) NewPage(ctx context.Context) (output.PagePort, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return newPage(b, p), nil
}

func (b *BrowserAdapter) Close() {
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.pw != nil {
		_ = b.pw.Stop()
	}
}
