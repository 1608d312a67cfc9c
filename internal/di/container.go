package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap/zapcore"

	"resilient-ui/internal/adapter/method"
	"resilient-ui/internal/application/port/input"
	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/application/service"
	"resilient-ui/internal/infrastructure/browser/chromedp"
	"resilient-ui/internal/infrastructure/browser/playwright"
	"resilient-ui/internal/infrastructure/browser/rod"
	"resilient-ui/internal/infrastructure/capture"
	"resilient-ui/internal/infrastructure/logger"
	"resilient-ui/internal/infrastructure/userinteraction"
	"resilient-ui/internal/usecase/executor"
	"resilient-ui/internal/usecase/resolver"
	"resilient-ui/internal/usecase/scenario"
	"resilient-ui/internal/usecase/waiter"
)

const (
	ProviderRod        = "rod"
	ProviderChromedp   = "chromedp"
	ProviderPlaywright = "playwright"
)

var ErrUnknownProvider = errors.New("unknown browser provider")

type Container struct {
	Browser output.BrowserPort
	Logger  output.LoggerPort
	UI      *service.UI
	Runner  input.ScenarioRunner
}

type Config struct {
	Provider   string
	Headless   bool
	NoSandbox  bool
	BrowserBin string

	LogName  string
	LogDir   string
	LogLevel zapcore.Level
	Verbose  bool
	// Out receives the console report; nil means stdout.
	Out io.Writer

	CaptureDir    string
	StepTimeout   time.Duration
	ActionTimeout time.Duration
	PollInterval  time.Duration
	PanelMarker   string
}

// ConfigFromEnv reads the UI_* and LOG_* settings.
func ConfigFromEnv(env output.ConfigPort) (Config, error) {
	level, err := zapcore.ParseLevel(env.GetWithDefault("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return Config{
		Provider:      env.GetWithDefault("UI_BROWSER", ProviderRod),
		Headless:      env.GetBool("UI_HEADLESS", true),
		NoSandbox:     env.GetBool("UI_NO_SANDBOX", false),
		BrowserBin:    env.Get("UI_BROWSER_BIN"),
		LogDir:        env.Get("LOG_DIR"),
		LogLevel:      level,
		Verbose:       env.GetBool("UI_VERBOSE", false),
		CaptureDir:    env.GetWithDefault("UI_CAPTURE_DIR", "captures"),
		StepTimeout:   env.GetDuration("UI_STEP_TIMEOUT", 10*time.Second),
		ActionTimeout: env.GetDuration("UI_ACTION_TIMEOUT", 5*time.Second),
		PollInterval:  env.GetDuration("UI_POLL_INTERVAL", 0),
		PanelMarker:   env.Get("UI_PANEL_MARKER"),
	}, nil
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Config{
		Name:    cfg.LogName,
		Dir:     cfg.LogDir,
		Level:   cfg.LogLevel,
		Console: cfg.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	browser, err := NewBrowser(ctx, cfg, log)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}

	ui := NewUI(cfg, log)
	runner := scenario.New(
		ui,
		browser,
		userinteraction.NewConsoleReporter(cfg.Out, cfg.Verbose),
		capture.New(capture.Config{Dir: cfg.CaptureDir}, log),
		log,
		cfg.StepTimeout,
	)

	return &Container{
		Browser: browser,
		Logger:  log,
		UI:      ui,
		Runner:  runner,
	}, nil
}

// NewUI wires resolver, executor and waiter into the page-adapter surface.
func NewUI(cfg Config, log output.LoggerPort) *service.UI {
	resCfg := resolver.DefaultConfig()
	waitCfg := waiter.DefaultConfig()
	if cfg.PollInterval > 0 {
		resCfg.PollInterval = cfg.PollInterval
		waitCfg.PollInterval = cfg.PollInterval
	}
	execCfg := executor.DefaultConfig()
	if cfg.ActionTimeout > 0 {
		execCfg.ActionTimeout = cfg.ActionTimeout
	}

	res := resolver.New(resCfg, log)
	exec := executor.New(res, service.NewMethodRegistry(method.Defaults()...), execCfg, log)
	return service.NewUI(res, exec, waiter.New(waitCfg, log), service.UIConfig{PanelMarker: cfg.PanelMarker}, log)
}

func NewBrowser(ctx context.Context, cfg Config, log output.LoggerPort) (output.BrowserPort, error) {
	switch cfg.Provider {
	case "", ProviderRod:
		c := rod.DefaultConfig()
		c.Headless = cfg.Headless
		c.NoSandbox = cfg.NoSandbox
		c.Bin = cfg.BrowserBin
		return rod.NewBrowserAdapter(ctx, c, log)
	case ProviderChromedp:
		c := chromedp.DefaultConfig()
		c.Headless = cfg.Headless
		c.NoSandbox = cfg.NoSandbox
		c.Bin = cfg.BrowserBin
		return chromedp.NewBrowserAdapter(ctx, c, log)
	case ProviderPlaywright:
		c := playwright.DefaultConfig()
		c.Headless = cfg.Headless
		c.NoSandbox = cfg.NoSandbox
		c.Bin = cfg.BrowserBin
		return playwright.NewBrowserAdapter(ctx, c, log)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}

func (c *Container) Close() {
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
