package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNewEnvServiceIn_OverlayWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "UI_BASE_URL=http://base\nUI_HEADLESS=false\n")
	writeFile(t, dir, ".env.ci", "UI_HEADLESS=true\n")

	t.Setenv("APP_ENV", "ci")
	t.Setenv("UI_BASE_URL", "")
	t.Setenv("UI_HEADLESS", "")
	// godotenv.Load keeps variables that are already set, even when empty.
	require.NoError(t, os.Unsetenv("UI_BASE_URL"))
	require.NoError(t, os.Unsetenv("UI_HEADLESS"))

	e := NewEnvServiceIn(dir)
	assert.Equal(t, "ci", e.AppEnv())
	assert.Equal(t, "http://base", e.Get("UI_BASE_URL"))
	assert.True(t, e.GetBool("UI_HEADLESS", false))
}

func TestNewEnvServiceIn_DefaultsToDev(t *testing.T) {
	t.Setenv("APP_ENV", "")
	e := NewEnvServiceIn(t.TempDir())
	assert.Equal(t, "dev", e.AppEnv())
}

func TestGetters(t *testing.T) {
	e := &EnvService{}
	t.Setenv("UI_TEST_STR", "value")
	t.Setenv("UI_TEST_BOOL", "yes-ish")
	t.Setenv("UI_TEST_INT", "42")
	t.Setenv("UI_TEST_BAD_INT", "4x")
	t.Setenv("UI_TEST_MS", "1500")
	t.Setenv("UI_TEST_DUR", "2s")
	t.Setenv("UI_TEST_BAD_DUR", "soon")

	assert.Equal(t, "value", e.MustGet("UI_TEST_STR"))
	assert.Equal(t, "value", e.GetWithDefault("UI_TEST_STR", "other"))
	assert.Equal(t, "other", e.GetWithDefault("UI_TEST_UNSET", "other"))

	assert.True(t, e.GetBool("UI_TEST_BOOL", true), "unparsable bools fall back")
	assert.False(t, e.GetBool("UI_TEST_UNSET", false))

	assert.Equal(t, 42, e.GetInt("UI_TEST_INT", 1))
	assert.Equal(t, 1, e.GetInt("UI_TEST_BAD_INT", 1))
	assert.Equal(t, 7, e.GetInt("UI_TEST_UNSET", 7))

	assert.Equal(t, 1500*time.Millisecond, e.GetDuration("UI_TEST_MS", 0))
	assert.Equal(t, 2*time.Second, e.GetDuration("UI_TEST_DUR", 0))
	assert.Equal(t, time.Second, e.GetDuration("UI_TEST_BAD_DUR", time.Second))
	assert.Equal(t, time.Minute, e.GetDuration("UI_TEST_UNSET", time.Minute))
}
