package rules

import (
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
)

// Build tree layout: object files under .anubis-build/<mode>/, binaries
// and archives under .anubis-bin/<mode>/. Directories are created on
// demand.
const (
	buildDirName = ".anubis-build"
	binDirName   = ".anubis-bin"
)

// absSource returns the absolute path of a source reference and its
// root-relative forward-slash form. Glob results arrive root-relative;
// RelPath results arrive absolute.
func absSource(root, src string) (abs, rootRel string, err error) {
	if filepath.IsAbs(filepath.FromSlash(src)) {
		abs = filepath.Clean(filepath.FromSlash(src))
	} else {
		abs = filepath.Join(root, filepath.FromSlash(src))
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", zerr.With(zerr.New("source escapes the project root"), "src", src)
	}
	return abs, filepath.ToSlash(rel), nil
}

// objectPath maps a root-relative source path to its object file under
// the build tree.
func objectPath(root, modeName, srcRootRel string) string {
	rel := filepath.FromSlash(srcRootRel)
	ext := filepath.Ext(rel)
	obj := strings.TrimSuffix(rel, ext) + ".o"
	return filepath.Join(root, buildDirName, modeName, obj)
}

// outputPath maps a target to its linked or archived output file.
func outputPath(root, modeName string, target domain.Target, file string) string {
	return filepath.Join(root, binDirName, modeName, filepath.FromSlash(target.Dir), file)
}

// executableName appends the platform executable suffix.
func executableName(name, targetPlatform string) string {
	if targetPlatform == "windows" {
		return name + ".exe"
	}
	return name
}

// archiveName appends the platform archive suffix.
func archiveName(name, targetPlatform string) string {
	if targetPlatform == "windows" {
		return name + ".lib"
	}
	return "lib" + name + ".a"
}

func ensureDirFor(file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create output directory")
	}
	return nil
}
