// Package shell provides the external tool runner adapter.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/ports"
)

// Runner implements ports.ToolRunner using os/exec.
type Runner struct {
	log ports.Logger
}

// NewRunner creates a new Runner.
func NewRunner(log ports.Logger) *Runner {
	return &Runner{log: log}
}

// Run executes argv[0] with the remaining arguments, capturing stdout and
// stderr. A nonzero exit is not an error here; callers decide how to
// surface it. The process environment is whatever survived the startup
// scrub.
//
// Cancellation is checked before the tool starts; a tool already in
// flight is never forcibly killed.
func (r *Runner) Run(ctx context.Context, argv []string) (ports.ToolResult, error) {
	if len(argv) == 0 {
		return ports.ToolResult{}, zerr.New("empty argv")
	}
	if err := ctx.Err(); err != nil {
		return ports.ToolResult{}, zerr.Wrap(err, "tool invocation cancelled")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // argv comes from resolved toolchain config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("running tool", "tool", argv[0], "args", len(argv)-1)

	start := time.Now()
	err := cmd.Run()
	res := ports.ToolResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, zerr.With(zerr.Wrap(err, "failed to start tool"), "tool", argv[0])
	}
	return res, nil
}
