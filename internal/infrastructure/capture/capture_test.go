package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"resilient-ui/internal/infrastructure/browser/static"
	"resilient-ui/internal/infrastructure/logger"
)

const markup = `<html><head><title>t</title><script>track()</script></head><body>
  <!-- banner -->
  <button id="save" data-testid="save-btn" data-reactid="7" aria-label="Save" onclick="go()" style="color:red">Save</button>
  <style>.x{}</style>
</body></html>`

type screenshotPage struct {
	*static.Page
	png []byte
}

func (p *screenshotPage) Screenshot(context.Context) ([]byte, error) {
	return p.png, nil
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	s := New(Config{Dir: dir, MaxWidth: 800}, logger.NewNop())
	s.now = func() time.Time { return time.Date(2026, 3, 1, 10, 4, 5, 0, time.UTC) }
	return s, dir
}

func readMeta(t *testing.T, dir string) Meta {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	require.NoError(t, err)
	var m Meta
	require.NoError(t, yaml.Unmarshal(data, &m))
	return m
}

func TestCaptureFailure(t *testing.T) {
	s, root := newService(t)
	page := &screenshotPage{Page: static.MustNew(markup), png: pngOf(t, 1600, 400)}
	defer page.Close()

	dir, err := s.CaptureFailure(context.Background(), page, "Click Save!")
	require.NoError(t, err)

	assert.Equal(t, root, filepath.Dir(dir))
	assert.True(t, strings.HasPrefix(filepath.Base(dir), "20260301-100405_click-save_"))

	shot, err := imaging.Open(filepath.Join(dir, screenshotFile))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 200), shot.Bounds())

	dom, err := os.ReadFile(filepath.Join(dir, domFile))
	require.NoError(t, err)
	assert.Contains(t, string(dom), `data-testid="save-btn"`)
	assert.Contains(t, string(dom), `aria-label="Save"`)
	assert.NotContains(t, string(dom), "data-reactid")
	assert.NotContains(t, string(dom), "onclick")
	assert.NotContains(t, string(dom), "track()")
	assert.NotContains(t, string(dom), "banner")

	meta := readMeta(t, dir)
	assert.Equal(t, "Click Save!", meta.Step)
	assert.Equal(t, "about:blank", meta.URL)
	assert.Equal(t, screenshotFile, meta.Screenshot)
	assert.Equal(t, domFile, meta.DOM)
	assert.Equal(t, controlsFile, meta.Controls)
	assert.Empty(t, meta.Errors)

	data, err := os.ReadFile(filepath.Join(dir, controlsFile))
	require.NoError(t, err)
	var controls []Control
	require.NoError(t, yaml.Unmarshal(data, &controls))
	require.Len(t, controls, 1)
	assert.Equal(t, `{testid: "save-btn"}`, controls[0].Selectors[1])
}

func TestCaptureFailure_PartialArtifacts(t *testing.T) {
	s, _ := newService(t)
	page := static.MustNew(markup)
	defer page.Close()

	dir, err := s.CaptureFailure(context.Background(), page, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, static.ErrNoScreenshot)
	require.NotEmpty(t, dir)
	assert.Contains(t, filepath.Base(dir), "_step_")

	assert.NoFileExists(t, filepath.Join(dir, screenshotFile))
	assert.FileExists(t, filepath.Join(dir, domFile))

	meta := readMeta(t, dir)
	assert.Empty(t, meta.Screenshot)
	require.Len(t, meta.Errors, 1)
	assert.Contains(t, meta.Errors[0], "screenshot")
}

func TestCaptureFailure_KeepsSmallScreenshots(t *testing.T) {
	s, _ := newService(t)
	page := &screenshotPage{Page: static.MustNew(markup), png: pngOf(t, 320, 240)}
	defer page.Close()

	dir, err := s.CaptureFailure(context.Background(), page, "small")
	require.NoError(t, err)

	shot, err := imaging.Open(filepath.Join(dir, screenshotFile))
	require.NoError(t, err)
	assert.Equal(t, 320, shot.Bounds().Dx())
}

func TestSnapshot_Truncates(t *testing.T) {
	cfg := DefaultSnapshotConfig
	cfg.MaxSize = 20

	out, err := Snapshot(markup, cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "<!-- truncated -->"))
	assert.Len(t, out, 20+len("\n<!-- truncated -->"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "open-filters", slug("Open Filters"))
	assert.Equal(t, "step", slug("!!!"))
	assert.Len(t, slug(strings.Repeat("a", 100)), 40)
}
