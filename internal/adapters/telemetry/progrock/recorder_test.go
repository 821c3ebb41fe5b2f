package progrock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	prock "github.com/vito/progrock"

	progrockadapter "github.com/anubis-build/anubis/internal/adapters/telemetry/progrock"
)

func TestRecorder_VertexLifecycle(t *testing.T) {
	tape := prock.NewTape()
	rec := progrockadapter.NewRecorder(tape)

	_, vtx := rec.Record(context.Background(), "Compiling main.cpp")
	_, err := vtx.Stdout().Write([]byte("note\n"))
	require.NoError(t, err)
	vtx.Complete(nil)

	_, failed := rec.Record(context.Background(), "Linking hi")
	failed.Complete(errors.New("exit code 1"))

	_, cached := rec.Record(context.Background(), "Compiling util.cpp")
	cached.Cached()

	require.NoError(t, rec.Close())
}
