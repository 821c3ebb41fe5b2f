package rules

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/core/ports"
)

// stderrTailLimit bounds how much captured stderr is attached to a tool
// failure diagnostic.
const stderrTailLimit = 4096

// runTool invokes an external tool and converts a nonzero exit into a
// diagnostic carrying the argv, the exit code, and the tail of stderr.
// Every rule funnels its compiler, archiver, and linker invocations
// through here so the quoting and failure shape stay uniform.
func runTool(ctx context.Context, runner ports.ToolRunner, argv []string) (ports.ToolResult, error) {
	res, err := runner.Run(ctx, argv)
	if err != nil {
		return res, zerr.With(zerr.Wrap(err, "failed to run tool"), "argv", JoinArgv(argv))
	}
	if res.ExitCode != 0 {
		ferr := zerr.Wrap(domain.ErrToolFailed, fmt.Sprintf("exit code %d", res.ExitCode))
		ferr = zerr.With(ferr, "argv", JoinArgv(argv))
		ferr = zerr.With(ferr, "exit_code", res.ExitCode)
		return res, zerr.With(ferr, "stderr", stderrTail(res.Stderr))
	}
	return res, nil
}

func stderrTail(stderr []byte) string {
	if len(stderr) > stderrTailLimit {
		stderr = stderr[len(stderr)-stderrTailLimit:]
	}
	return strings.TrimRight(string(stderr), "\n")
}

// JoinArgv renders an argv for diagnostics with the host platform's
// quoting rules.
func JoinArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"'") {
		return arg
	}
	if runtime.GOOS == "windows" {
		return `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
