package domain

import "go.trai.ch/zerr"

var (
	// ErrLex is returned when Papyrus source cannot be tokenized.
	ErrLex = zerr.New("lex error")

	// ErrParse is returned when a token stream is not a valid Papyrus file.
	ErrParse = zerr.New("parse error")

	// ErrResolve is returned when glob/select/concat evaluation fails.
	ErrResolve = zerr.New("resolve error")

	// ErrProjection is returned when a resolved object does not fit the
	// requested rule record shape.
	ErrProjection = zerr.New("projection error")

	// ErrCycle is returned when enqueuing a job would create a dependency cycle.
	ErrCycle = zerr.New("dependency cycle")

	// ErrJobFailed is returned by a job whose work failed.
	ErrJobFailed = zerr.New("job failed")

	// ErrRejectedByDep is recorded for jobs that never ran because a
	// transitive dependency failed.
	ErrRejectedByDep = zerr.New("rejected: dependency failed")

	// ErrAborted is returned when a job is enqueued after the abort flag
	// has been raised.
	ErrAborted = zerr.New("build aborted")

	// ErrToolFailed is returned when an external tool exits nonzero.
	ErrToolFailed = zerr.New("tool invocation failed")

	// ErrBuildFailed is the sentinel the CLI maps to exit code 1.
	ErrBuildFailed = zerr.New("build failed")

	// ErrInvalidTarget is returned for malformed target references.
	ErrInvalidTarget = zerr.New("invalid target")

	// ErrRootNotFound is returned when no .anubis_root marker exists in any
	// parent directory.
	ErrRootNotFound = zerr.New(".anubis_root not found")

	// ErrUnknownRuleType is returned when a config object's type has no
	// registered rule.
	ErrUnknownRuleType = zerr.New("unknown rule type")
)
