package rod

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
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
	assert.Equal(t, time.Duration(defaultSlowMotion), cfg.SlowMotion)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.False(t, cfg.NoSandbox, "Should be secure by default")
	assert.False(t, cfg.DevTools)
}

// launch starts a headless browser shared by the test. Skipped under -short
// or when no local browser is installed.
func launch(t *testing.T) *BrowserAdapter {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no local browser found")
	}

	cfg := DefaultConfig()
	cfg.NoSandbox = true
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

func TestPage_ForeignHandleError(t *testing.T) {
	adapter := launch(t)
	ctx := context.Background()

	a, err := adapter.NewPage(ctx)
	require.NoError(t, err)
	defer a.Close()
	b, err := adapter.NewPage(ctx)
	require.NoError(t, err)
	defer b.Close()

	server := browsertest.Serve(t, map[string]string{"/": browsertest.BasicHTML})
	require.NoError(t, a.Navigate(ctx, server.URL))

	els, err := a.FindAll(ctx, entity.ByCSS("h1"), nil)
	require.NoError(t, err)
	require.Len(t, els, 1)

	_, err = b.GetText(ctx, els[0])
	assert.ErrorIs(t, err, ErrForeignHandle)

	_, err = a.IsVisible(ctx, els[0])
	assert.NoError(t, err)
}
