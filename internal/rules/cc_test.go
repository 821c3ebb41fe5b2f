package rules_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anubis-build/anubis/internal/adapters/telemetry"
	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/core/ports"
	"github.com/anubis-build/anubis/internal/core/ports/mocks"
	"github.com/anubis-build/anubis/internal/engine/jobs"
	"github.com/anubis-build/anubis/internal/registry"
	"github.com/anubis-build/anubis/internal/rules"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(error)          {}

// project is one scripted build session over a temp project tree.
type project struct {
	root   string
	reg    *registry.Registry
	runner *mocks.MockToolRunner
	sys    *jobs.System
}

func newProject(t *testing.T, ctrl *gomock.Controller) *project {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, domain.RootMarkerName), nil, 0o600))

	p := &project{
		root:   root,
		reg:    registry.New(root, nopLogger{}),
		runner: mocks.NewMockToolRunner(ctrl),
		sys:    jobs.NewSystem(nopLogger{}, telemetry.NewNoop()),
	}
	require.NoError(t, rules.Register(&rules.Env{Reg: p.reg, Runner: p.runner, Log: nopLogger{}}))

	p.write(t, "mode/ANUBIS", `
mode(
    name = "win_dev",
    vars = {
        target_platform = "windows",
        target_arch = "x64",
    },
)

mode(
    name = "linux_dev",
    vars = {
        target_platform = "linux",
        target_arch = "x64",
    },
)
`)
	p.write(t, "toolchains/ANUBIS", `
toolchain(
    name = "default",
    cpp = CcToolchain(
        compiler = "/opt/cc",
        archiver = "/opt/ar",
    ),
    nasm = NasmToolchain(
        assembler = "/opt/nasm",
        output_format = "win64",
    ),
)
`)
	return p
}

func (p *project) write(t *testing.T, rel, contents string) {
	t.Helper()
	path := filepath.Join(p.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func (p *project) build(t *testing.T, modeRef, targetRef string, workers int) error {
	t.Helper()
	modeTarget, err := domain.ParseTarget(modeRef, "")
	require.NoError(t, err)
	mode, err := p.reg.Mode(modeTarget)
	require.NoError(t, err)

	tcTarget, err := domain.ParseTarget("//toolchains:default", "")
	require.NoError(t, err)
	tc, err := p.reg.Toolchain(mode, tcTarget)
	require.NoError(t, err)

	target, err := domain.ParseTarget(targetRef, "")
	require.NoError(t, err)
	rule, err := p.reg.Rule(mode, target)
	if err != nil {
		return err
	}
	_, err = p.reg.EnsureJob(p.sys, mode, target, "root", func() (*jobs.Job, error) {
		return rule.CreateRootJob(p.sys, mode, tc)
	})
	require.NoError(t, err)

	return p.sys.Run(context.Background(), workers)
}

// argvLog records every tool invocation in completion order.
type argvLog struct {
	mu    sync.Mutex
	calls [][]string
}

func (l *argvLog) add(argv []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, append([]string(nil), argv...))
}

func (l *argvLog) snapshot() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]string(nil), l.calls...)
}

func isCompile(argv []string) bool {
	for _, a := range argv {
		if a == "-c" {
			return true
		}
	}
	return false
}

func hasArg(argv []string, arg string) bool {
	for _, a := range argv {
		if a == arg {
			return true
		}
	}
	return false
}

func TestCppBinary_TrivialBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := newProject(t, ctrl)
	p.write(t, "ANUBIS", `
cpp_binary(
    name = "hi",
    srcs = ["main.cpp"],
    deps = [],
)
`)

	log := &argvLog{}
	p.runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, argv []string) (ports.ToolResult, error) {
			log.add(argv)
			return ports.ToolResult{}, nil
		}).Times(2)

	require.NoError(t, p.build(t, "//mode:win_dev", "//:hi", 4))

	calls := log.snapshot()
	require.Len(t, calls, 2)

	compile, link := calls[0], calls[1]
	assert.True(t, isCompile(compile), "compile must precede link")
	assert.False(t, isCompile(link))
	assert.Equal(t, "/opt/cc", compile[0])
	assert.True(t, hasArg(compile, filepath.Join(p.root, "main.cpp")))

	out := link[len(link)-1]
	wantSuffix := filepath.Join(".anubis-bin", "win_dev", "hi.exe")
	assert.True(t, strings.HasSuffix(out, wantSuffix), "got %q, want suffix %q", out, wantSuffix)
	assert.True(t, hasArg(link, "-o"))
}

func TestCppBinary_LinuxHasNoExeSuffix(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := newProject(t, ctrl)
	p.write(t, "ANUBIS", `cpp_binary(name = "hi", srcs = ["main.cpp"])`)

	log := &argvLog{}
	p.runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, argv []string) (ports.ToolResult, error) {
			log.add(argv)
			return ports.ToolResult{}, nil
		}).Times(2)

	require.NoError(t, p.build(t, "//mode:linux_dev", "//:hi", 4))

	link := log.snapshot()[1]
	out := link[len(link)-1]
	assert.True(t, strings.HasSuffix(out, filepath.Join(".anubis-bin", "linux_dev", "hi")), "got %q", out)
}

func TestCppStaticLibrary_DiamondBuildsSharedDepOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := newProject(t, ctrl)
	p.write(t, "u/ANUBIS", `
cpp_static_library(
    name = "u",
    srcs = ["u.cpp"],
    public_include_dirs = ["u/include"],
)
`)
	p.write(t, "a/ANUBIS", `
cpp_static_library(name = "a", srcs = ["a.cpp"], deps = ["//u:u"])
`)
	p.write(t, "b/ANUBIS", `
cpp_static_library(name = "b", srcs = ["b.cpp"], deps = ["//u:u"])
`)
	p.write(t, "m/ANUBIS", `
cpp_binary(name = "m", srcs = ["m.cpp"], deps = ["//a:a", "//b:b"])
`)

	log := &argvLog{}
	p.runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, argv []string) (ports.ToolResult, error) {
			log.add(argv)
			return ports.ToolResult{}, nil
		}).AnyTimes()

	require.NoError(t, p.build(t, "//mode:linux_dev", "//m:m", 8))

	uSrc := filepath.Join(p.root, "u", "u.cpp")
	uCompiles := 0
	var link []string
	for _, argv := range log.snapshot() {
		if isCompile(argv) && hasArg(argv, uSrc) {
			uCompiles++
		}
		if !isCompile(argv) && argv[0] == "/opt/cc" && hasArg(argv, "-o") {
			link = argv
		}
	}
	assert.Equal(t, 1, uCompiles, "u.cpp must compile exactly once")

	require.NotNil(t, link, "link step must run")
	uArchive := filepath.Join(p.root, ".anubis-bin", "linux_dev", "u", "libu.a")
	seen := 0
	for _, a := range link {
		if a == uArchive {
			seen++
		}
	}
	assert.Equal(t, 1, seen, "u's archive appears exactly once in the link inputs")
}

func TestCppBinary_CompileFailureRejectsLink(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := newProject(t, ctrl)
	p.write(t, "ANUBIS", `
cpp_binary(
    name = "hi",
    srcs = ["ok1.cpp", "bad.cpp", "ok2.cpp", "ok3.cpp"],
)
`)

	const siblings = 4
	var started sync.WaitGroup
	started.Add(siblings)
	release := make(chan struct{})

	log := &argvLog{}
	p.runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, argv []string) (ports.ToolResult, error) {
			started.Done()
			<-release
			log.add(argv)
			if hasArg(argv, filepath.Join(p.root, "bad.cpp")) {
				return ports.ToolResult{ExitCode: 1, Stderr: []byte("bad.cpp:1: error: nope\n")}, nil
			}
			return ports.ToolResult{}, nil
		}).Times(siblings)

	go func() {
		started.Wait()
		close(release)
	}()

	err := p.build(t, "//mode:linux_dev", "//:hi", siblings+1)
	require.ErrorIs(t, err, domain.ErrBuildFailed)

	// All four compiles ran; the link never did.
	assert.Len(t, log.snapshot(), siblings)

	failures := p.sys.Failures()
	require.Len(t, failures, 2)
	assert.False(t, failures[0].Rejected)
	assert.ErrorIs(t, failures[0].Err, domain.ErrJobFailed)
	assert.True(t, failures[1].Rejected)
	assert.ErrorIs(t, failures[1].Err, domain.ErrRejectedByDep)
}

func TestCppBinary_DependencyCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := newProject(t, ctrl)
	p.write(t, "x/ANUBIS", `cpp_binary(name = "x", srcs = ["x.cpp"], deps = [":y"])
cpp_binary(name = "y", srcs = ["y.cpp"], deps = [":x"])`)

	// No compile job ever starts.
	p.runner.EXPECT().Run(gomock.Any(), gomock.Any()).Times(0)

	err := p.build(t, "//mode:linux_dev", "//x:x", 1)
	require.ErrorIs(t, err, domain.ErrBuildFailed)

	var cycle error
	for _, f := range p.sys.Failures() {
		if !f.Rejected && strings.Contains(f.Err.Error(), "cycle") {
			cycle = f.Err
		}
	}
	require.Error(t, cycle, "a cycle diagnostic must be raised")
	assert.Contains(t, cycle.Error(), "x")
	assert.Contains(t, cycle.Error(), "y")
}

func TestCppStaticLibrary_PublicSurfacePropagatesToBinaryCompiles(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := newProject(t, ctrl)
	p.write(t, "lib/ANUBIS", `
cpp_static_library(
    name = "core",
    srcs = ["core.cpp"],
    public_defines = ["USE_CORE"],
    public_include_dirs = ["lib/include"],
)
`)
	p.write(t, "ANUBIS", `cpp_binary(name = "hi", srcs = ["main.cpp"], deps = ["//lib:core"])`)

	log := &argvLog{}
	p.runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, argv []string) (ports.ToolResult, error) {
			log.add(argv)
			return ports.ToolResult{}, nil
		}).AnyTimes()

	require.NoError(t, p.build(t, "//mode:linux_dev", "//:hi", 4))

	mainSrc := filepath.Join(p.root, "main.cpp")
	for _, argv := range log.snapshot() {
		if isCompile(argv) && hasArg(argv, mainSrc) {
			assert.True(t, hasArg(argv, "-DUSE_CORE"), "binary compile inherits public defines")
			assert.True(t, hasArg(argv, "-Ilib/include"), "binary compile inherits public include dirs")
			return
		}
	}
	t.Fatal("main.cpp compile not found")
}

func TestCppBinary_ZeroSourcesFailsAtProjection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := newProject(t, ctrl)
	p.write(t, "ANUBIS", `cpp_binary(name = "hi", srcs = [])`)

	err := p.build(t, "//mode:linux_dev", "//:hi", 1)
	assert.ErrorIs(t, err, domain.ErrProjection)
}
