package wiring_test

import (
	"context"
	"testing"

	"github.com/grindlemire/graft"
	"github.com/stretchr/testify/require"

	"github.com/anubis-build/anubis/internal/app"
	_ "github.com/anubis-build/anubis/internal/wiring"
)

// TestGraftWiring executes the full dependency graph and checks that the
// composition root produces wired components.
func TestGraftWiring(t *testing.T) {
	components, _, err := graft.ExecuteFor[*app.Components](context.Background())
	require.NoError(t, err)
	require.NotNil(t, components.App)
	require.NotNil(t, components.Logger)
}
