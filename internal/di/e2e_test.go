package di

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resilient-ui/internal/adapter/steps"
	"resilient-ui/internal/infrastructure/fixture"
	"resilient-ui/internal/infrastructure/logger"
)

// TestSampleScenario drives the bundled scenario through the fixture site,
// whose overlay makes the first trusted clicks miss.
func TestSampleScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no local browser found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	srv := fixture.NewServer(fixture.Config{Addr: "127.0.0.1:0", SearchDelay: 200 * time.Millisecond}, logger.NewNop())
	ready := make(chan string, 1)
	go func() { _ = srv.ListenAndServe(ctx, ready) }()
	addr := <-ready

	sc, err := steps.Load(filepath.Join("..", "..", "scenarios", "company_search.yaml"))
	require.NoError(t, err)
	require.NoError(t, steps.Rebase(sc, "http://"+addr))

	var out bytes.Buffer
	container, err := NewContainer(ctx, Config{
		Provider:    ProviderRod,
		Headless:    true,
		NoSandbox:   true,
		LogName:     "e2e",
		LogDir:      t.TempDir(),
		Out:         &out,
		CaptureDir:  t.TempDir(),
		StepTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	defer container.Close()

	result, err := container.Runner.Run(ctx, sc)
	require.NoError(t, err)
	assert.False(t, result.Failed(), out.String())
	assert.Equal(t, len(result.Steps), result.Passed)
	assert.Contains(t, out.String(), "PASSED company search")
}
