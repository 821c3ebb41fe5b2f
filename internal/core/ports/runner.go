// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"time"
)

// ToolResult is the captured outcome of one external tool invocation.
type ToolResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// ToolRunner executes external tools (compilers, archivers, linkers).
//
// Run returns an error only when the tool could not be started or was
// interrupted; a nonzero exit code is reported through ToolResult so
// callers can attach their own diagnostics.
//
//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type ToolRunner interface {
	Run(ctx context.Context, argv []string) (ToolResult, error)
}
