package chromedp

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
	"resilient-ui/internal/infrastructure/browser/browsertest"
	"resilient-ui/internal/infrastructure/logger"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Headless)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.False(t, cfg.NoSandbox)
	assert.Empty(t, cfg.Bin)
}

func findBrowser() (string, bool) {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin, true
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

func launch(t *testing.T) *BrowserAdapter {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}
	bin, ok := findBrowser()
	if !ok {
		t.Skip("no local browser found")
	}

	cfg := DefaultConfig()
	cfg.NoSandbox = true
	cfg.Bin = bin
	adapter, err := NewBrowserAdapter(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(adapter.Close)
	return adapter
}

func TestPage(t *testing.T) {
	adapter := launch(t)
	browsertest.Run(t, func(t *testing.T) output.PagePort {
		page, err := adapter.NewPage(context.Background())
		require.NoError(t, err)
		return page
	})
}

func TestPage_CallerContextCancels(t *testing.T) {
	adapter := launch(t)
	page, err := adapter.NewPage(context.Background())
	require.NoError(t, err)
	defer page.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = page.Navigate(ctx, "about:blank")
	assert.ErrorIs(t, err, context.Canceled)

	// The tab survives a cancelled call.
	require.NoError(t, page.Navigate(context.Background(), "about:blank"))
}

func TestPage_StaleAfterNavigation(t *testing.T) {
	adapter := launch(t)
	page, err := adapter.NewPage(context.Background())
	require.NoError(t, err)
	defer page.Close()

	ctx := context.Background()
	server := browsertest.Serve(t, map[string]string{"/": browsertest.BasicHTML})
	require.NoError(t, page.Navigate(ctx, server.URL))

	els, err := page.FindAll(ctx, entity.ByCSS("h1"), nil)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "<h1>", els[0].String())

	require.NoError(t, page.Navigate(ctx, server.URL+"/?again"))
	attached, err := page.IsAttached(ctx, els[0])
	require.NoError(t, err)
	assert.False(t, attached)
}

func TestPage_WaitForNetworkIdleTimeout(t *testing.T) {
	adapter := launch(t)
	page, err := adapter.NewPage(context.Background())
	require.NoError(t, err)
	defer page.Close()

	ctx := context.Background()
	server := browsertest.Serve(t, map[string]string{"/": `<!DOCTYPE html><body><script>
setInterval(function () { const i = new Image(); i.src = '/px?' + Math.random(); }, 50);
</script></body>`})
	require.NoError(t, page.Navigate(ctx, server.URL))

	err = page.WaitForNetworkIdle(ctx, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
