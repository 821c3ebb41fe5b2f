// Package main is the entry point for the anubis CLI.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/grindlemire/graft"

	"github.com/anubis-build/anubis/cmd/anubis/commands"
	"github.com/anubis-build/anubis/internal/app"
	"github.com/anubis-build/anubis/internal/core/domain"
	_ "github.com/anubis-build/anubis/internal/wiring"
)

// Exit codes: 0 success, 1 build failure, 2 invalid arguments or
// configuration parse error.
const (
	exitOK    = 0
	exitBuild = 1
	exitUsage = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		// Logger is not available if initialization failed; write directly.
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return exitUsage
	}

	cli := commands.New(components)
	if err := cli.Execute(ctx); err != nil {
		switch {
		case errors.Is(err, domain.ErrLex),
			errors.Is(err, domain.ErrParse),
			errors.Is(err, domain.ErrInvalidTarget):
			components.Logger.Error(err)
			return exitUsage
		case errors.Is(err, domain.ErrBuildFailed):
			components.Logger.Error(err)
			return exitBuild
		default:
			components.Logger.Error(err)
			if isUsageError(err) {
				return exitUsage
			}
			return exitBuild
		}
	}
	return exitOK
}

// isUsageError detects cobra's own flag errors, which carry no sentinel.
func isUsageError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"required flag", "unknown flag", "unknown command", "invalid argument"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
