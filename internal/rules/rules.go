// Package rules implements the built-in rule set: cpp_binary,
// cpp_static_library, and nasm_objects, all driving the job system
// through deferrable root jobs.
package rules

import (
	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/core/ports"
	"github.com/anubis-build/anubis/internal/papyrus"
	"github.com/anubis-build/anubis/internal/registry"
)

// Env is the shared environment rule instances capture: the registry they
// resolve dependencies through, the runner they invoke tools with, and
// the session logger.
type Env struct {
	Reg    *registry.Registry
	Runner ports.ToolRunner
	Log    ports.Logger
}

// Register installs every built-in rule type into the registry.
func Register(env *Env) error {
	infos := []registry.RuleTypeInfo{
		{
			Name: "cpp_binary",
			Parse: func(target domain.Target, obj *papyrus.Value) (registry.Rule, error) {
				rule := &CppBinary{env: env, target: target}
				if err := papyrus.ProjectObject(obj, "cpp_binary", rule, env.Log.Warn); err != nil {
					return nil, err
				}
				return rule, nil
			},
		},
		{
			Name: "cpp_static_library",
			Parse: func(target domain.Target, obj *papyrus.Value) (registry.Rule, error) {
				rule := &CppStaticLibrary{env: env, target: target}
				if err := papyrus.ProjectObject(obj, "cpp_static_library", rule, env.Log.Warn); err != nil {
					return nil, err
				}
				return rule, nil
			},
		},
		{
			Name: "nasm_objects",
			Parse: func(target domain.Target, obj *papyrus.Value) (registry.Rule, error) {
				rule := &NasmObjects{env: env, target: target}
				if err := papyrus.ProjectObject(obj, "nasm_objects", rule, env.Log.Warn); err != nil {
					return nil, err
				}
				return rule, nil
			},
		},
	}
	for _, ti := range infos {
		if err := env.Reg.RegisterRuleType(ti); err != nil {
			return err
		}
	}
	return nil
}

// ccExtraArgs accumulates the flags a compilation or link inherits from
// its own rule and the public surface of its static-library deps. Slices
// keep first-seen order so command lines stay deterministic.
type ccExtraArgs struct {
	compilerFlags []string
	defines       []string
	includeDirs   []string
	libraries     []string
	libraryDirs   []string
}

func (e *ccExtraArgs) extendBinary(b *CppBinary) {
	e.compilerFlags = appendUnique(e.compilerFlags, b.CompilerFlags...)
	e.defines = appendUnique(e.defines, b.Defines...)
	e.includeDirs = appendUnique(e.includeDirs, b.IncludeDirs...)
	e.libraries = appendUnique(e.libraries, b.Libraries...)
	e.libraryDirs = appendUnique(e.libraryDirs, b.LibraryDirs...)
}

func (e *ccExtraArgs) extendStaticPublic(l *CppStaticLibrary) {
	e.compilerFlags = appendUnique(e.compilerFlags, l.PublicCompilerFlags...)
	e.defines = appendUnique(e.defines, l.PublicDefines...)
	e.includeDirs = appendUnique(e.includeDirs, l.PublicIncludeDirs...)
	e.libraries = appendUnique(e.libraries, l.PublicLibraries...)
	e.libraryDirs = appendUnique(e.libraryDirs, l.PublicLibraryDirs...)
}

func (e *ccExtraArgs) extendStaticPrivate(l *CppStaticLibrary) {
	e.compilerFlags = appendUnique(e.compilerFlags, l.PrivateCompilerFlags...)
	e.defines = appendUnique(e.defines, l.PrivateDefines...)
	e.includeDirs = appendUnique(e.includeDirs, l.PrivateIncludeDirs...)
}

func appendUnique(dst []string, src ...string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}
