// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/anubis-build/anubis/internal/adapters/logger"
	_ "github.com/anubis-build/anubis/internal/adapters/shell"
	_ "github.com/anubis-build/anubis/internal/adapters/telemetry/progrock"
	// Register app nodes.
	_ "github.com/anubis-build/anubis/internal/app"
)
