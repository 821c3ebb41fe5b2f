// Package app implements the application layer: one build session from
// target parsing to the diagnostic summary.
package app

import (
	"context"
	"os"
	"runtime"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/core/ports"
	"github.com/anubis-build/anubis/internal/engine/jobs"
	"github.com/anubis-build/anubis/internal/registry"
	"github.com/anubis-build/anubis/internal/rules"
)

// DefaultToolchainTarget is used when --toolchain is not given.
const DefaultToolchainTarget = "//toolchains:default"

// App wires the session components together.
type App struct {
	log    ports.Logger
	tel    ports.Telemetry
	runner ports.ToolRunner

	// workdir overrides the process working directory in tests.
	workdir string
}

// New creates a new App instance.
func New(log ports.Logger, tel ports.Telemetry, runner ports.ToolRunner) *App {
	return &App{log: log, tel: tel, runner: runner}
}

// SetWorkdir overrides where project-root discovery starts. Used by tests.
func (a *App) SetWorkdir(dir string) { a.workdir = dir }

// BuildOptions carries the build subcommand's arguments.
type BuildOptions struct {
	Mode      string
	Targets   []string
	Toolchain string
	Workers   int
}

// Build runs one build session: load and resolve configuration for every
// requested target, seed root jobs, run the job system, and report.
func (a *App) Build(ctx context.Context, opts BuildOptions) error {
	if len(opts.Targets) == 0 {
		return zerr.Wrap(domain.ErrInvalidTarget, "at least one target is required")
	}
	if opts.Toolchain == "" {
		opts.Toolchain = DefaultToolchainTarget
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}

	root, err := a.findRoot()
	if err != nil {
		return err
	}
	ScrubEnvironment()

	reg := registry.New(root, a.log)
	env := &rules.Env{Reg: reg, Runner: a.runner, Log: a.log}
	if err := rules.Register(env); err != nil {
		return err
	}

	modeTarget, err := domain.ParseTarget(opts.Mode, "")
	if err != nil {
		return zerr.Wrap(err, "invalid mode target")
	}
	mode, err := reg.Mode(modeTarget)
	if err != nil {
		return zerr.Wrap(err, "failed to load mode")
	}

	tcTarget, err := domain.ParseTarget(opts.Toolchain, "")
	if err != nil {
		return zerr.Wrap(err, "invalid toolchain target")
	}
	toolchain, err := reg.Toolchain(mode, tcTarget)
	if err != nil {
		return zerr.Wrap(err, "failed to load toolchain")
	}

	a.log.Info("build session starting",
		"mode", mode.Name,
		"toolchain", toolchain.Name,
		"targets", len(opts.Targets),
		"workers", opts.Workers,
	)

	sys := jobs.NewSystem(a.log, a.tel)
	defer func() { _ = a.tel.Close() }()

	for _, ref := range opts.Targets {
		target, err := domain.ParseTarget(ref, "")
		if err != nil {
			return err
		}
		rule, err := reg.Rule(mode, target)
		if err != nil {
			return zerr.Wrap(err, "failed to load target")
		}
		_, err = reg.EnsureJob(sys, mode, target, "root", func() (*jobs.Job, error) {
			return rule.CreateRootJob(sys, mode, toolchain)
		})
		if err != nil {
			return err
		}
	}

	runErr := sys.Run(ctx, opts.Workers)
	if runErr != nil {
		a.reportFailures(sys)
		return zerr.Wrap(domain.ErrBuildFailed, runErr.Error())
	}
	a.log.Info("build succeeded", "targets", len(opts.Targets))
	return nil
}

// reportFailures prints the root-cause set (Failed jobs) before the
// collateral one (Rejected jobs).
func (a *App) reportFailures(sys *jobs.System) {
	for _, f := range sys.Failures() {
		if f.Rejected {
			a.log.Warn("job rejected", "job", f.Display.Title(), "cause", f.Err.Error())
		} else {
			a.log.Error(f.Err)
		}
	}
}

func (a *App) findRoot() (string, error) {
	start := a.workdir
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", zerr.Wrap(err, "failed to get working directory")
		}
		start = cwd
	}
	return FindRoot(start)
}
