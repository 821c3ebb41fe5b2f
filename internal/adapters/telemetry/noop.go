// Package telemetry provides telemetry helpers shared by its backends.
package telemetry

import (
	"context"
	"io"

	"github.com/anubis-build/anubis/internal/core/ports"
)

// Noop is a ports.Telemetry that records nothing. Used by tests and by
// runs where no progress display is wanted.
type Noop struct{}

// NewNoop creates a no-op telemetry backend.
func NewNoop() ports.Telemetry { return Noop{} }

// Record returns a vertex that discards everything.
func (Noop) Record(ctx context.Context, _ string) (context.Context, ports.Vertex) {
	return ctx, noopVertex{}
}

// Close is a no-op.
func (Noop) Close() error { return nil }

type noopVertex struct{}

func (noopVertex) Stdout() io.Writer { return io.Discard }
func (noopVertex) Stderr() io.Writer { return io.Discard }
func (noopVertex) Complete(error) {}
func (noopVertex) Cached()        {}
