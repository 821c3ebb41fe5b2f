package app

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/adapters/toolchaindb"
	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/papyrus"
	"github.com/anubis-build/anubis/internal/registry"
)

// downloadsDirName is the scratch directory toolchain installers unpack
// into; it is pruned after installation unless --keep-downloads is given.
const downloadsDirName = ".anubis-downloads"

// InstallToolchains verifies every toolchain declared under //toolchains
// and records the verified ones in the toolchain database. Fetching and
// archive extraction are handled by external installers; this command
// only validates and records what is on disk.
func (a *App) InstallToolchains(_ context.Context, keepDownloads bool) error {
	root, err := a.findRoot()
	if err != nil {
		return err
	}

	db, err := toolchaindb.NewStore(root)
	if err != nil {
		return err
	}

	host := &domain.Mode{Name: "host"}
	host.InjectHostVars()

	reg := registry.New(root, a.log)
	configPath := filepath.Join(root, "toolchains", domain.ConfigFileName)
	file, err := reg.Resolved(configPath, host)
	if err != nil {
		return zerr.Wrap(err, "failed to load //toolchains")
	}

	verified := 0
	for _, obj := range file.Elems {
		if obj.Str != "toolchain" {
			continue
		}
		tc := &domain.Toolchain{}
		if err := papyrus.ProjectObject(obj, "toolchain", tc, a.log.Warn); err != nil {
			return err
		}
		target := domain.Target{Dir: "toolchains", Name: tc.Name}

		if !a.verifyTool("compiler", tc.Cpp.Compiler) ||
			!a.verifyTool("archiver", tc.Cpp.Archiver) ||
			!a.verifyTool("assembler", tc.Nasm.Assembler) {
			a.log.Warn("toolchain not installed", "toolchain", tc.Name)
			continue
		}

		rec := toolchaindb.Record{
			Name:        tc.Name,
			Target:      target.String(),
			CppCompiler: tc.Cpp.Compiler,
			CppArchiver: tc.Cpp.Archiver,
			Assembler:   tc.Nasm.Assembler,
			VerifiedAt:  time.Now().UTC(),
		}
		if err := db.Put(rec); err != nil {
			return err
		}
		a.log.Info("toolchain verified", "toolchain", tc.Name)
		verified++
	}

	if !keepDownloads {
		downloads := filepath.Join(root, downloadsDirName)
		if err := os.RemoveAll(downloads); err != nil {
			a.log.Warn("failed to prune downloads", "dir", downloads, "error", err.Error())
		}
	}

	a.log.Info("install-toolchains finished", "verified", verified)
	return nil
}

// verifyTool checks that a configured tool path exists. Unset paths pass:
// a toolchain need not declare every language.
func (a *App) verifyTool(kind, path string) bool {
	if path == "" {
		return true
	}
	if _, err := os.Stat(path); err != nil {
		a.log.Warn("tool missing", "kind", kind, "path", path)
		return false
	}
	return true
}
