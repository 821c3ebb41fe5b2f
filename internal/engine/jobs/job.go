// Package jobs implements the parallel job system: a dependency-aware
// scheduler whose jobs may defer themselves after spawning children,
// so a rule can model "compile N sources, then link" without holding a
// worker thread during the wait.
package jobs

import (
	"context"

	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/core/ports"
)

// ID identifies a job within one build session.
type ID int64

// State is the lifecycle state of a job.
type State int

// Job states.
const (
	StatePending State = iota
	StateReady
	StateRunning
	StateDeferred
	StateSucceeded
	StateFailed
	StateRejected
)

var stateNames = map[State]string{
	StatePending:   "Pending",
	StateReady:     "Ready",
	StateRunning:   "Running",
	StateDeferred:  "Deferred",
	StateSucceeded: "Succeeded",
	StateFailed:    "Failed",
	StateRejected:  "Rejected",
}

func (s State) String() string { return stateNames[s] }

// Artifact is the opaque typed payload a successful job publishes.
// Consumers type-switch on the concrete shapes they expect.
type Artifact any

// Display is structured display metadata for a job, produced at creation
// time so the progress display never parses description strings.
type Display struct {
	Verb   string // present participle: "Compiling", "Linking", "Archiving"
	Short  string // short name: "main.cpp", "hi"
	Detail string // verbose detail: full path or target address
}

// Title renders the one-line display form.
func (d Display) Title() string {
	if d.Verb == "" {
		return d.Short
	}
	return d.Verb + " " + d.Short
}

// Fn is the work function of a job. It runs on a worker goroutine and
// must communicate suspension only through its return value.
type Fn func(rc *RunContext) Outcome

// Outcome is the result of one invocation of a job function.
type Outcome struct {
	artifact Artifact
	err      error
	deferral *Deferral
}

// Success completes the job, publishing artifact to dependents.
func Success(artifact Artifact) Outcome { return Outcome{artifact: artifact} }

// Fail fails the job with err.
func Fail(err error) Outcome { return Outcome{err: err} }

// Defer suspends the job until the deferral's children and waits have all
// succeeded, then re-runs it with the resume function.
func Defer(d Deferral) Outcome { return Outcome{deferral: &d} }

// Deferral describes a job suspension: new children to insert, existing
// jobs to additionally wait on, and the function to run on resumption.
type Deferral struct {
	Children []*Job
	WaitFor  []ID
	Resume   Fn

	// ResumeDisplay, when set, replaces the job's display for the
	// resumption run ("Linking hi" after "Building hi").
	ResumeDisplay Display
}

// Job is one unit of schedulable work.
type Job struct {
	id        ID
	display   Display
	fn        Fn
	deps      []ID
	mode      *domain.Mode
	toolchain *domain.Toolchain
}

// ID returns the job's session-unique id.
func (j *Job) ID() ID { return j.id }

// Display returns the job's display metadata.
func (j *Job) Display() Display { return j.display }

// DependsOn adds dependencies that must succeed before the job runs.
func (j *Job) DependsOn(ids ...ID) { j.deps = append(j.deps, ids...) }

// RunContext is handed to a job function for the duration of one run.
type RunContext struct {
	Ctx       context.Context
	Job       *Job
	Mode      *domain.Mode
	Toolchain *domain.Toolchain
	Sys       *System
	Log       ports.Logger
	Vertex    ports.Vertex
}

// NewChild creates a job inheriting this job's mode and toolchain. The
// child still has to be handed to the scheduler, either by Enqueue or as
// part of a Deferral.
func (rc *RunContext) NewChild(d Display, fn Fn) *Job {
	return rc.Sys.NewJob(rc.Mode, rc.Toolchain, d, fn)
}
