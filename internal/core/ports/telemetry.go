package ports

import (
	"context"
	"io"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Telemetry records the progress of build jobs for display.
type Telemetry interface {
	// Record starts recording a vertex for one unit of work.
	Record(ctx context.Context, name string) (context.Context, Vertex)
	// Close flushes and closes the recording session.
	Close() error
}

// Vertex represents one unit of work being displayed.
type Vertex interface {
	// Stdout returns a writer to capture standard output.
	Stdout() io.Writer
	// Stderr returns a writer to capture error output.
	Stderr() io.Writer
	// Complete marks the vertex as finished, successfully or with an error.
	Complete(err error)
	// Cached marks the vertex as satisfied by a previously produced result.
	Cached()
}
