package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"resilient-ui/internal/adapter/steps"
	"resilient-ui/internal/di"
	"resilient-ui/internal/domain/entity"
	"resilient-ui/internal/infrastructure/env"
	"resilient-ui/internal/infrastructure/fixture"
	"resilient-ui/internal/infrastructure/logger"
)

// errFailed marks a scenario that ran to completion with a failed step.
var errFailed = errors.New("scenario failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(env.NewEnvService()).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(envService *env.EnvService) *cobra.Command {
	root := &cobra.Command{
		Use:           "uiprobe",
		Short:         "Run resilient UI scenarios against a browser",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(envService), newFixturesCmd(envService))
	return root
}

func newRunCmd(envService *env.EnvService) *cobra.Command {
	var (
		browser    string
		headful    bool
		verbose    bool
		baseURL    string
		captureDir string
		fixtures   bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenario files in order, stopping each at its first failed step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cfg, err := di.ConfigFromEnv(envService)
			if err != nil {
				return err
			}
			cfg.LogName = "run"
			cfg.Out = cmd.OutOrStdout()
			if cmd.Flags().Changed("browser") {
				cfg.Provider = browser
			}
			if headful {
				cfg.Headless = false
			}
			if verbose {
				cfg.Verbose = true
			}
			if captureDir != "" {
				cfg.CaptureDir = captureDir
			}

			scenarios := make([]*entity.Scenario, 0, len(args))
			for _, path := range args {
				sc, err := steps.Load(path)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, sc)
			}

			if fixtures {
				addr, err := startFixtures(ctx, envService)
				if err != nil {
					return err
				}
				baseURL = "http://" + addr
			}

			container, err := di.NewContainer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer container.Close()

			failed := 0
			for i, sc := range scenarios {
				if err := steps.Rebase(sc, baseURL); err != nil {
					return err
				}

				container.Logger.Info("Scenario started", "scenario", sc.Name, "file", args[i])
				result, err := container.Runner.Run(ctx, sc)
				if err != nil {
					container.Logger.Error("Scenario aborted", "scenario", sc.Name, "error", err)
					return err
				}
				if result.Failed() {
					failed++
					if result.Capture != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "Failure artifacts: %s\n", result.Capture)
					}
				}
				container.Logger.Info("Scenario finished",
					"scenario", sc.Name,
					"passed", result.Passed,
					"steps", len(result.Steps),
					"elapsed", result.Elapsed,
				)
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errFailed, failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&browser, "browser", di.ProviderRod, "browser provider: rod, chromedp or playwright")
	cmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print per-attempt failure causes and warnings")
	cmd.Flags().StringVar(&baseURL, "base-url", envService.Get("UI_BASE_URL"), "base for relative scenario URLs")
	cmd.Flags().StringVar(&captureDir, "capture-dir", "", "directory for failure artifacts")
	cmd.Flags().BoolVar(&fixtures, "fixtures", false, "serve the bundled fixture site and use it as base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall run timeout")
	return cmd
}

func newFixturesCmd(envService *env.EnvService) *cobra.Command {
	var (
		addr  string
		delay time.Duration
		json  bool
	)

	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Serve the fixture site used by the sample scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewLoggerAdapter(logger.Config{Name: "fixtures", Console: true})
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer log.Close()

			srv := fixture.NewServer(fixture.Config{Addr: addr, SearchDelay: delay, JSONLogs: json}, log)
			ready := make(chan string, 1)
			go func() {
				if a, ok := <-ready; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Serving fixtures on http://%s\n", a)
				}
			}()
			return srv.ListenAndServe(cmd.Context(), ready)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envService.GetWithDefault("FIXTURE_ADDR", "127.0.0.1:8089"), "listen address")
	cmd.Flags().DurationVar(&delay, "delay", envService.GetDuration("FIXTURE_SEARCH_DELAY", 0), "extra latency for /api/search")
	cmd.Flags().BoolVar(&json, "json", false, "log requests as JSON")
	return cmd
}

// startFixtures serves the fixture site on a free port until ctx ends.
func startFixtures(ctx context.Context, envService *env.EnvService) (string, error) {
	log, err := logger.NewLoggerAdapter(logger.Config{Name: "fixtures"})
	if err != nil {
		return "", fmt.Errorf("failed to create logger: %w", err)
	}

	srv := fixture.NewServer(fixture.Config{
		Addr:        "127.0.0.1:0",
		SearchDelay: envService.GetDuration("FIXTURE_SEARCH_DELAY", 0),
		JSONLogs:    true,
	}, log)

	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, ready)
		log.Close()
	}()

	select {
	case addr := <-ready:
		return addr, nil
	case err := <-errCh:
		return "", err
	}
}
