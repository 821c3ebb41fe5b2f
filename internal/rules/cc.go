package rules

import (
	"os"
	"path"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/engine/jobs"
)

// CppBinary compiles its sources in parallel, then links an executable.
type CppBinary struct {
	Name          string   `papyrus:"name,required"`
	Srcs          []string `papyrus:"srcs,required,nonempty"`
	Deps          []string `papyrus:"deps"`
	CompilerFlags []string `papyrus:"compiler_flags"`
	Defines       []string `papyrus:"defines"`
	IncludeDirs   []string `papyrus:"include_dirs"`
	Libraries     []string `papyrus:"libraries"`
	LibraryDirs   []string `papyrus:"library_dirs"`

	env    *Env
	target domain.Target
}

// RuleName returns the rule's declared name.
func (b *CppBinary) RuleName() string { return b.Name }

// Target returns the address the rule was declared at.
func (b *CppBinary) Target() domain.Target { return b.target }

// CreateRootJob seeds the rule's root job. On first entry the job
// resolves deps, enqueues one compile job per source, and defers; on
// resumption it links.
func (b *CppBinary) CreateRootJob(sys *jobs.System, mode *domain.Mode, tc *domain.Toolchain) (*jobs.Job, error) {
	display := jobs.Display{Verb: "Building", Short: b.Name, Detail: b.target.String()}
	return sys.NewJob(mode, tc, display, b.start), nil
}

func (b *CppBinary) start(rc *jobs.RunContext) jobs.Outcome {
	extra := &ccExtraArgs{}
	depIDs, err := resolveDeps(rc, b.env, b.target, b.Deps, extra)
	if err != nil {
		return jobs.Fail(err)
	}
	extra.extendBinary(b)

	compileIDs, err := compileSources(rc, b.env, b.target, b.Srcs, extra)
	if err != nil {
		return jobs.Fail(err)
	}

	return jobs.Defer(jobs.Deferral{
		WaitFor:       append(depIDs, compileIDs...),
		Resume:        b.link(depIDs, compileIDs, extra),
		ResumeDisplay: jobs.Display{Verb: "Linking", Short: b.Name, Detail: b.target.String()},
	})
}

func (b *CppBinary) link(depIDs, compileIDs []jobs.ID, extra *ccExtraArgs) jobs.Fn {
	return func(rc *jobs.RunContext) jobs.Outcome {
		inputs, err := collectLinkInputs(rc, compileIDs, depIDs)
		if err != nil {
			return jobs.Fail(err)
		}

		cpp := &rc.Toolchain.Cpp
		out := outputPath(b.env.Reg.Root(), rc.Mode.Name, b.target, executableName(b.Name, rc.Mode.TargetPlatform()))
		if err := ensureDirFor(out); err != nil {
			return jobs.Fail(err)
		}

		argv := []string{cpp.LinkDriver()}
		argv = append(argv, cpp.LinkerFlags...)
		for _, dir := range cpp.LibraryDirs {
			argv = append(argv, "-L"+dir)
		}
		for _, dir := range extra.libraryDirs {
			argv = append(argv, "-L"+dir)
		}
		argv = append(argv, inputs...)
		for _, lib := range cpp.Libraries {
			argv = append(argv, "-l"+lib)
		}
		for _, lib := range extra.libraries {
			argv = append(argv, "-l"+lib)
		}
		argv = append(argv, "-o", out)

		res, err := runTool(rc.Ctx, b.env.Runner, argv)
		if err != nil {
			return jobs.Fail(zerr.With(err, "target", b.target.String()))
		}

		var size int64
		if info, statErr := os.Stat(out); statErr == nil {
			size = info.Size()
		}
		b.env.Log.Info("Linked: "+out, "size", size)
		return jobs.Success(&ExecutableArtifact{Path: out, Size: size, Duration: res.Duration})
	}
}

// CppStaticLibrary compiles its sources in parallel, then archives them.
// Its public surface (flags, defines, include dirs, libraries) propagates
// to rules that depend on it.
type CppStaticLibrary struct {
	Name string   `papyrus:"name,required"`
	Srcs []string `papyrus:"srcs,required,nonempty"`
	Deps []string `papyrus:"deps"`

	PublicCompilerFlags []string `papyrus:"public_compiler_flags"`
	PublicDefines       []string `papyrus:"public_defines"`
	PublicIncludeDirs   []string `papyrus:"public_include_dirs"`
	PublicLibraries     []string `papyrus:"public_libraries"`
	PublicLibraryDirs   []string `papyrus:"public_library_dirs"`

	PrivateCompilerFlags []string `papyrus:"private_compiler_flags"`
	PrivateDefines       []string `papyrus:"private_defines"`
	PrivateIncludeDirs   []string `papyrus:"private_include_dirs"`

	env    *Env
	target domain.Target
}

// RuleName returns the rule's declared name.
func (l *CppStaticLibrary) RuleName() string { return l.Name }

// Target returns the address the rule was declared at.
func (l *CppStaticLibrary) Target() domain.Target { return l.target }

// CreateRootJob seeds the rule's root job; the resume step archives
// instead of linking.
func (l *CppStaticLibrary) CreateRootJob(sys *jobs.System, mode *domain.Mode, tc *domain.Toolchain) (*jobs.Job, error) {
	display := jobs.Display{Verb: "Building", Short: l.Name, Detail: l.target.String()}
	return sys.NewJob(mode, tc, display, l.start), nil
}

func (l *CppStaticLibrary) start(rc *jobs.RunContext) jobs.Outcome {
	extra := &ccExtraArgs{}
	depIDs, err := resolveDeps(rc, l.env, l.target, l.Deps, extra)
	if err != nil {
		return jobs.Fail(err)
	}
	extra.extendStaticPublic(l)
	extra.extendStaticPrivate(l)

	compileIDs, err := compileSources(rc, l.env, l.target, l.Srcs, extra)
	if err != nil {
		return jobs.Fail(err)
	}

	return jobs.Defer(jobs.Deferral{
		WaitFor:       append(depIDs, compileIDs...),
		Resume:        l.archive(depIDs, compileIDs),
		ResumeDisplay: jobs.Display{Verb: "Archiving", Short: l.Name, Detail: l.target.String()},
	})
}

func (l *CppStaticLibrary) archive(depIDs, compileIDs []jobs.ID) jobs.Fn {
	return func(rc *jobs.RunContext) jobs.Outcome {
		objects := make([]string, 0, len(compileIDs))
		for _, id := range compileIDs {
			art, err := rc.Sys.Artifact(id)
			if err != nil {
				return jobs.Fail(err)
			}
			obj, ok := art.(*ObjectArtifact)
			if !ok {
				return jobs.Fail(zerr.With(zerr.New("unexpected compile artifact shape"), "target", l.target.String()))
			}
			objects = append(objects, obj.Path)
		}

		out := outputPath(l.env.Reg.Root(), rc.Mode.Name, l.target, archiveName(l.Name, rc.Mode.TargetPlatform()))
		if err := ensureDirFor(out); err != nil {
			return jobs.Fail(err)
		}

		argv := []string{rc.Toolchain.Cpp.Archiver, "rcs", out}
		argv = append(argv, objects...)
		res, err := runTool(rc.Ctx, l.env.Runner, argv)
		if err != nil {
			return jobs.Fail(zerr.With(err, "target", l.target.String()))
		}

		linkInputs := []string{out}
		for _, id := range depIDs {
			art, err := rc.Sys.Artifact(id)
			if err != nil {
				return jobs.Fail(err)
			}
			if dep, ok := art.(*ArchiveArtifact); ok {
				linkInputs = appendUnique(linkInputs, dep.LinkInputs...)
			}
		}
		return jobs.Success(&ArchiveArtifact{
			Path:        out,
			IncludeDirs: append([]string(nil), l.PublicIncludeDirs...),
			LinkInputs:  linkInputs,
			Duration:    res.Duration,
		})
	}
}

// resolveDeps resolves dependency targets through the registry, seeds (or
// reuses) their root jobs, and folds the public surface of static-library
// deps into extra.
func resolveDeps(rc *jobs.RunContext, env *Env, from domain.Target, deps []string, extra *ccExtraArgs) ([]jobs.ID, error) {
	ids := make([]jobs.ID, 0, len(deps))
	for _, ref := range deps {
		target, err := domain.ParseTarget(ref, from.Dir)
		if err != nil {
			return nil, err
		}
		rule, err := env.Reg.Rule(rc.Mode, target)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to resolve dependency"), "dep", ref)
		}
		if lib, ok := rule.(*CppStaticLibrary); ok {
			extra.extendStaticPublic(lib)
		}
		id, err := env.Reg.EnsureJob(rc.Sys, rc.Mode, target, "root", func() (*jobs.Job, error) {
			return rule.CreateRootJob(rc.Sys, rc.Mode, rc.Toolchain)
		})
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to enqueue dependency"), "dep", ref)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// compileSources seeds one memoized compile job per source file.
func compileSources(rc *jobs.RunContext, env *Env, target domain.Target, srcs []string, extra *ccExtraArgs) ([]jobs.ID, error) {
	ids := make([]jobs.ID, 0, len(srcs))
	for _, src := range srcs {
		id, err := compileJob(rc, env, target, src, extra)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func compileJob(rc *jobs.RunContext, env *Env, target domain.Target, src string, extra *ccExtraArgs) (jobs.ID, error) {
	root := env.Reg.Root()
	abs, rootRel, err := absSource(root, src)
	if err != nil {
		return 0, err
	}
	return env.Reg.EnsureJob(rc.Sys, rc.Mode, target, "compile:"+rootRel, func() (*jobs.Job, error) {
		display := jobs.Display{Verb: "Compiling", Short: path.Base(rootRel), Detail: abs}
		obj := objectPath(root, rc.Mode.Name, rootRel)
		fn := func(rc *jobs.RunContext) jobs.Outcome {
			cpp := &rc.Toolchain.Cpp
			if err := ensureDirFor(obj); err != nil {
				return jobs.Fail(err)
			}
			argv := []string{cpp.Compiler}
			argv = append(argv, cpp.CompilerFlags...)
			for _, dir := range cpp.SystemIncludeDirs {
				argv = append(argv, "-isystem", dir)
			}
			for _, def := range cpp.Defines {
				argv = append(argv, "-D"+def)
			}
			argv = append(argv, extra.compilerFlags...)
			for _, dir := range extra.includeDirs {
				argv = append(argv, "-I"+dir)
			}
			for _, def := range extra.defines {
				argv = append(argv, "-D"+def)
			}
			argv = append(argv, "-c", abs, "-o", obj)

			res, err := runTool(rc.Ctx, env.Runner, argv)
			if err != nil {
				return jobs.Fail(zerr.With(err, "src", rootRel))
			}
			return jobs.Success(&ObjectArtifact{Path: obj, Duration: res.Duration})
		}
		return rc.NewChild(display, fn), nil
	})
}

// collectLinkInputs gathers object files from compile jobs and link
// inputs from dependency artifacts, first-seen order, no duplicates.
func collectLinkInputs(rc *jobs.RunContext, compileIDs, depIDs []jobs.ID) ([]string, error) {
	var inputs []string
	for _, id := range compileIDs {
		art, err := rc.Sys.Artifact(id)
		if err != nil {
			return nil, err
		}
		switch a := art.(type) {
		case *ObjectArtifact:
			inputs = appendUnique(inputs, a.Path)
		case *ObjectsArtifact:
			inputs = appendUnique(inputs, a.Paths...)
		default:
			return nil, zerr.New("unexpected compile artifact shape")
		}
	}
	for _, id := range depIDs {
		art, err := rc.Sys.Artifact(id)
		if err != nil {
			return nil, err
		}
		switch a := art.(type) {
		case *ArchiveArtifact:
			inputs = appendUnique(inputs, a.LinkInputs...)
		case *ObjectsArtifact:
			inputs = appendUnique(inputs, a.Paths...)
		case *ObjectArtifact:
			inputs = appendUnique(inputs, a.Path)
		case *ExecutableArtifact:
			return nil, zerr.New("cannot link against an executable dependency")
		default:
			return nil, zerr.New("unexpected dependency artifact shape")
		}
	}
	return inputs, nil
}
