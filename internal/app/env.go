package app

import (
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
)

// FindRoot walks upward from start until it finds the .anubis_root
// marker file; its directory is the project root.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", zerr.Wrap(err, "failed to absolutize start directory")
	}
	for {
		marker := filepath.Join(dir, domain.RootMarkerName)
		if info, err := os.Stat(marker); err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", zerr.With(zerr.Wrap(domain.ErrRootNotFound, "no project root above start directory"), "start", start)
		}
		dir = parent
	}
}

// Environment variables that survive the startup scrub: the build's own
// namespace plus the runtime diagnostic knobs.
var keepEnv = []string{
	"ANUBIS_",
	"GODEBUG",
	"GOTRACEBACK",
	"GOMEMLIMIT",
	"GOMAXPROCS",
}

// ScrubEnvironment removes every environment variable that is not on the
// keep list. It runs once, before worker threads start, so tools are
// invoked against a deterministic environment.
func ScrubEnvironment() {
	for _, entry := range os.Environ() {
		key, _, ok := strings.Cut(entry, "=")
		if !ok || keepEnvVar(key) {
			continue
		}
		_ = os.Unsetenv(key)
	}
}

func keepEnvVar(key string) bool {
	for _, keep := range keepEnv {
		if key == keep || (strings.HasSuffix(keep, "_") && strings.HasPrefix(key, keep)) {
			return true
		}
	}
	return false
}
