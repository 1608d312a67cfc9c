package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"resilient-ui/internal/application/port/output"
)

var _ output.CapturePort = (*Service)(nil)

const (
	defaultDir      = "captures"
	defaultMaxWidth = 1280

	screenshotFile = "screenshot.png"
	domFile        = "dom.html"
	controlsFile   = "controls.yaml"
	metaFile       = "meta.yaml"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

type Config struct {
	Dir      string
	MaxWidth int
	Snapshot SnapshotConfig
}

// Meta is written next to the artifacts of a failed step.
type Meta struct {
	Step       string    `yaml:"step"`
	URL        string    `yaml:"url,omitempty"`
	CapturedAt time.Time `yaml:"captured_at"`
	Screenshot string    `yaml:"screenshot,omitempty"`
	DOM        string    `yaml:"dom,omitempty"`
	Controls   string    `yaml:"controls,omitempty"`
	Errors     []string  `yaml:"errors,omitempty"`
}

// Service stores a screenshot, a cleaned DOM snapshot and metadata for each
// failed step under its own directory.
type Service struct {
	dir      string
	maxWidth int
	snapshot SnapshotConfig
	logger   output.LoggerPort
	now      func() time.Time
}

func New(cfg Config, logger output.LoggerPort) *Service {
	if cfg.Dir == "" {
		cfg.Dir = defaultDir
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = defaultMaxWidth
	}
	if cfg.Snapshot.TagsToRemove == nil && cfg.Snapshot.DropPrefixes == nil {
		cfg.Snapshot = DefaultSnapshotConfig
	}
	return &Service{
		dir:      cfg.Dir,
		maxWidth: cfg.MaxWidth,
		snapshot: cfg.Snapshot,
		logger:   logger,
		now:      time.Now,
	}
}

// CaptureFailure returns the capture directory whenever it could be created.
// Artifacts that could not be produced are listed in meta.yaml and in the
// returned error.
func (s *Service) CaptureFailure(ctx context.Context, page output.PagePort, step string) (string, error) {
	now := s.now()
	dir := filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s", now.Format("20060102-150405"), slug(step), uuid.NewString()[:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}

	meta := Meta{Step: step, CapturedAt: now}
	var errs error

	if url, err := page.CurrentURL(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("url: %w", err))
	} else {
		meta.URL = url
	}

	if err := s.writeScreenshot(ctx, page, filepath.Join(dir, screenshotFile)); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("screenshot: %w", err))
	} else {
		meta.Screenshot = screenshotFile
	}

	if raw, err := page.HTML(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("dom: %w", err))
	} else {
		if err := s.writeDOM(raw, filepath.Join(dir, domFile)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dom: %w", err))
		} else {
			meta.DOM = domFile
		}
		if err := writeControls(raw, filepath.Join(dir, controlsFile)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("controls: %w", err))
		} else {
			meta.Controls = controlsFile
		}
	}

	for _, err := range multierr.Errors(errs) {
		meta.Errors = append(meta.Errors, err.Error())
	}
	if err := writeMeta(filepath.Join(dir, metaFile), meta); err != nil {
		errs = multierr.Append(errs, err)
	}

	s.logger.Info("Failure captured", "step", step, "dir", dir, "url", meta.URL)
	return dir, errs
}

func (s *Service) writeScreenshot(ctx context.Context, page output.PagePort, path string) error {
	raw, err := page.Screenshot(ctx)
	if err != nil {
		return err
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("image decode failed: %w", err)
	}
	if img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}
	return imaging.Save(img, path)
}

func (s *Service) writeDOM(raw, path string) error {
	snap, err := Snapshot(raw, s.snapshot)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(snap), 0o644)
}

func writeControls(raw, path string) error {
	controls, err := ExtractControls(raw, defaultMaxControls)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(controls)
	if err != nil {
		return fmt.Errorf("marshal controls: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func writeMeta(path string, meta Meta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

func slug(step string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(step), "-"), "-")
	if len(s) > 40 {
		s = s[:40]
	}
	if s == "" {
		return "step"
	}
	return s
}
