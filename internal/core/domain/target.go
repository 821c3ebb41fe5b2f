// Package domain contains the core value objects of the build system:
// target addresses, modes, and toolchain records.
package domain

import (
	"path"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

// Target is a normalized build target address.
//
// The textual forms are "//dir/path:name" (project-root-relative) and
// ":name" (relative to the referencing config file). After parsing, Dir is
// always root-relative with forward slashes and no leading "//", so two
// targets are equal iff their struct values are equal.
type Target struct {
	Dir  string
	Name string
}

// ConfigFileName is the name of a Papyrus configuration file.
const ConfigFileName = "ANUBIS"

// RootMarkerName marks the project root; its parent directory is the root.
const RootMarkerName = ".anubis_root"

// ParseTarget parses a target reference. fromDir is the root-relative
// directory of the config file the reference appears in; it is consulted
// only for the ":name" relative form.
func ParseTarget(ref, fromDir string) (Target, error) {
	switch {
	case strings.HasPrefix(ref, "//"):
		rest := ref[2:]
		dir, name, ok := strings.Cut(rest, ":")
		if !ok {
			return Target{}, zerr.With(zerr.Wrap(ErrInvalidTarget, "target is missing its :name part"), "ref", ref)
		}
		return makeTarget(dir, name, ref)
	case strings.HasPrefix(ref, ":"):
		return makeTarget(fromDir, ref[1:], ref)
	default:
		return Target{}, zerr.With(zerr.Wrap(ErrInvalidTarget, "target must start with // or :"), "ref", ref)
	}
}

func makeTarget(dir, name, ref string) (Target, error) {
	if !validName(name) {
		return Target{}, zerr.With(zerr.Wrap(ErrInvalidTarget, "invalid target name"), "ref", ref)
	}
	clean := path.Clean(strings.ReplaceAll(dir, "\\", "/"))
	if clean == "." {
		clean = ""
	}
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return Target{}, zerr.With(zerr.Wrap(ErrInvalidTarget, "target escapes project root"), "ref", ref)
	}
	return Target{Dir: clean, Name: name}, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// String returns the canonical "//dir:name" form.
func (t Target) String() string {
	return "//" + t.Dir + ":" + t.Name
}

// IsZero reports whether the target is unset.
func (t Target) IsZero() bool {
	return t.Dir == "" && t.Name == ""
}

// ConfigPath returns the absolute path of the ANUBIS file declaring this
// target, given the absolute project root.
func (t Target) ConfigPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(t.Dir), ConfigFileName)
}
