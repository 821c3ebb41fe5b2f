package app_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anubis-build/anubis/internal/app"
	"github.com/anubis-build/anubis/internal/core/domain"
)

// preserveEnv snapshots the process environment and restores it when the
// test finishes, since ScrubEnvironment mutates it for real.
func preserveEnv(t *testing.T) {
	t.Helper()
	saved := os.Environ()
	t.Cleanup(func() {
		os.Clearenv()
		for _, entry := range saved {
			if k, v, ok := strings.Cut(entry, "="); ok {
				_ = os.Setenv(k, v)
			}
		}
	})
}

func TestFindRoot_WalksUpward(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, domain.RootMarkerName), nil, 0o600))
	nested := filepath.Join(root, "examples", "deep", "deeper")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	got, err := app.FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindRoot_NotFound(t *testing.T) {
	_, err := app.FindRoot(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrRootNotFound)
}

func TestScrubEnvironment(t *testing.T) {
	preserveEnv(t)

	require.NoError(t, os.Setenv("ANUBIS_CACHE_DIR", "/tmp/cache"))
	require.NoError(t, os.Setenv("GODEBUG", "gctrace=1"))
	require.NoError(t, os.Setenv("SOME_RANDOM_VAR", "should disappear"))
	require.NoError(t, os.Setenv("PATH", "/usr/bin"))

	app.ScrubEnvironment()

	assert.Equal(t, "/tmp/cache", os.Getenv("ANUBIS_CACHE_DIR"))
	assert.Equal(t, "gctrace=1", os.Getenv("GODEBUG"))
	assert.Empty(t, os.Getenv("SOME_RANDOM_VAR"))
	assert.Empty(t, os.Getenv("PATH"))
}
