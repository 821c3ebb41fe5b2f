package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/core/ports"
)

// System owns the job graph, the artifact store, and the worker pool.
//
// The scheduler is the sole synchronization authority for dependency
// visible state: artifacts published by a dependency are read by
// dependents through the same mutex that ordered the state transition,
// so no job needs additional locks to see its dependencies' results.
type System struct {
	log ports.Logger
	tel ports.Telemetry

	nextID atomic.Int64
	abort  atomic.Bool

	mu          sync.Mutex
	cond        *sync.Cond
	ready       []*Job
	blocked     map[ID]*Job
	state       map[ID]State
	display     map[ID]Display
	blockedBy   map[ID]map[ID]struct{}
	blocks      map[ID]map[ID]struct{}
	artifacts   map[ID]Artifact
	errs        map[ID]error
	outstanding int
	draining    bool
}

// NewSystem creates an empty job system.
func NewSystem(log ports.Logger, tel ports.Telemetry) *System {
	s := &System{
		log:       log,
		tel:       tel,
		blocked:   make(map[ID]*Job),
		state:     make(map[ID]State),
		display:   make(map[ID]Display),
		blockedBy: make(map[ID]map[ID]struct{}),
		blocks:    make(map[ID]map[ID]struct{}),
		artifacts: make(map[ID]Artifact),
		errs:      make(map[ID]error),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// NewJob creates a job with a fresh id. The job is not scheduled until it
// is enqueued or inserted through a deferral.
func (s *System) NewJob(mode *domain.Mode, tc *domain.Toolchain, d Display, fn Fn) *Job {
	return &Job{
		id:        ID(s.nextID.Add(1)),
		display:   d,
		fn:        fn,
		mode:      mode,
		toolchain: tc,
	}
}

// Aborted reports whether the abort flag has been raised.
func (s *System) Aborted() bool { return s.abort.Load() }

// Enqueue inserts a job into the graph. It fails synchronously when the
// dependencies would create a cycle or when the abort flag is already
// raised. A job whose dependency has already failed is inserted directly
// in the Rejected state.
func (s *System) Enqueue(job *Job) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueueLocked(job)
}

func (s *System) enqueueLocked(job *Job) (ID, error) {
	if job.fn == nil {
		return 0, zerr.With(zerr.New("job has no function"), "job", job.display.Title())
	}
	if s.abort.Load() {
		return 0, zerr.With(zerr.Wrap(domain.ErrAborted, "enqueue refused"), "job", job.display.Title())
	}
	if _, dup := s.state[job.id]; dup {
		return 0, zerr.With(zerr.New("job already enqueued"), "job", job.display.Title())
	}

	for _, dep := range job.deps {
		if dep == job.id {
			return 0, zerr.With(zerr.Wrap(domain.ErrCycle, job.display.Short+" -> "+job.display.Short), "job", job.display.Title())
		}
		if _, known := s.state[dep]; !known {
			return 0, zerr.With(zerr.With(zerr.New("unknown dependency"), "job", job.display.Title()), "dep", int64(dep))
		}
		if path := s.cyclePathLocked(dep, job.id); path != nil {
			return 0, s.cycleError(job, dep, path)
		}
	}

	s.state[job.id] = StatePending
	s.display[job.id] = job.display
	s.outstanding++

	live := 0
	for _, dep := range job.deps {
		switch s.state[dep] {
		case StateSucceeded:
			continue
		case StateFailed, StateRejected:
			s.rejectLocked(job.id, s.errs[dep])
			return job.id, nil
		default:
			s.addEdgeLocked(job.id, dep)
			live++
		}
	}
	if live == 0 {
		s.makeReadyLocked(job)
	} else {
		s.blocked[job.id] = job
	}
	return job.id, nil
}

// cyclePathLocked reports the chain from -> ... -> to following blocked-by
// edges, or nil when to is unreachable from from.
func (s *System) cyclePathLocked(from, to ID) []ID {
	if from == to {
		return []ID{from}
	}
	seen := map[ID]bool{}
	var walk func(id ID) []ID
	walk = func(id ID) []ID {
		if seen[id] {
			return nil
		}
		seen[id] = true
		for blocker := range s.blockedBy[id] {
			if blocker == to {
				return []ID{id, to}
			}
			if rest := walk(blocker); rest != nil {
				return append([]ID{id}, rest...)
			}
		}
		return nil
	}
	return walk(from)
}

func (s *System) cycleError(job *Job, dep ID, path []ID) error {
	names := []string{job.display.Short}
	for _, id := range path {
		names = append(names, s.display[id].Short)
	}
	err := zerr.Wrap(domain.ErrCycle, strings.Join(names, " -> "))
	return zerr.With(err, "job", job.display.Title())
}

func (s *System) addEdgeLocked(blocked, blocker ID) {
	if s.blockedBy[blocked] == nil {
		s.blockedBy[blocked] = make(map[ID]struct{})
	}
	s.blockedBy[blocked][blocker] = struct{}{}
	if s.blocks[blocker] == nil {
		s.blocks[blocker] = make(map[ID]struct{})
	}
	s.blocks[blocker][blocked] = struct{}{}
}

func (s *System) makeReadyLocked(job *Job) {
	s.state[job.id] = StateReady
	s.ready = append(s.ready, job)
	s.cond.Signal()
}

// rejectLocked marks a job and its transitive dependents Rejected without
// running them.
func (s *System) rejectLocked(id ID, cause error) {
	if st := s.state[id]; st == StateFailed || st == StateRejected || st == StateSucceeded {
		return
	}
	s.state[id] = StateRejected
	s.errs[id] = zerr.With(errors.Join(domain.ErrRejectedByDep, cause), "job", s.display[id].Title())
	delete(s.blocked, id)
	s.outstanding--
	s.propagateToDependentsLocked(id, cause)
}

func (s *System) propagateToDependentsLocked(id ID, cause error) {
	dependents := s.blocks[id]
	delete(s.blocks, id)
	for dep := range dependents {
		delete(s.blockedBy[dep], id)
		s.rejectLocked(dep, cause)
	}
	if s.outstanding == 0 || s.abort.Load() {
		s.cond.Broadcast()
	}
}

// Run executes the graph on workers goroutines until every job reached a
// terminal state or ctx is cancelled. A worker never blocks mid-job on a
// peer; suspension happens only through Deferral returns.
func (s *System) Run(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	s.log.Debug("starting job system", "workers", workers)

	stop := context.AfterFunc(ctx, func() {
		s.abort.Store(true)
		s.mu.Lock()
		s.draining = true
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	start := time.Now()
	g := new(errgroup.Group)
	for range workers {
		g.Go(func() error {
			s.worker(ctx)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return zerr.Wrap(err, "build cancelled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := zerr.Wrap(domain.ErrBuildFailed, fmt.Sprintf("%d job(s) did not succeed", len(s.errs)))
		return zerr.With(err, "elapsed", time.Since(start).Round(time.Millisecond).String())
	}
	s.log.Debug("job system completed", "jobs", len(s.state), "elapsed", time.Since(start).Round(time.Millisecond).String())
	return nil
}

func (s *System) worker(ctx context.Context) {
	for {
		s.mu.Lock()
		for len(s.ready) == 0 && s.outstanding > 0 && !s.draining && !s.abort.Load() {
			s.cond.Wait()
		}
		// After an abort, in-flight jobs finish but queued ones never start.
		if len(s.ready) == 0 || s.draining || s.abort.Load() {
			s.mu.Unlock()
			return
		}
		job := s.ready[0]
		s.ready = s.ready[1:]
		s.state[job.id] = StateRunning
		s.mu.Unlock()

		s.execute(ctx, job)
	}
}

func (s *System) execute(ctx context.Context, job *Job) {
	_, vtx := s.tel.Record(ctx, job.display.Title())
	rc := &RunContext{
		Ctx:       ctx,
		Job:       job,
		Mode:      job.mode,
		Toolchain: job.toolchain,
		Sys:       s,
		Log:       s.log,
		Vertex:    vtx,
	}

	start := time.Now()
	outcome := s.invoke(job, rc)
	elapsed := time.Since(start)

	switch {
	case outcome.deferral != nil:
		vtx.Complete(nil)
		s.handleDeferral(job, outcome.deferral)
	case outcome.err != nil:
		vtx.Complete(outcome.err)
		s.log.Debug("job failed", "job", job.display.Title(), "elapsed", elapsed.String())
		s.handleFailure(job, outcome.err)
	default:
		vtx.Complete(nil)
		s.log.Debug("job succeeded", "job", job.display.Title(), "elapsed", elapsed.String())
		s.handleSuccess(job, outcome.artifact)
	}
}

// invoke runs the job function, converting a panic into a job failure so
// one bad rule cannot take down the worker pool.
func (s *System) invoke(job *Job, rc *RunContext) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Fail(zerr.With(zerr.New(fmt.Sprintf("job panicked: %v", r)), "job", job.display.Title()))
		}
	}()
	return job.fn(rc)
}

func (s *System) handleSuccess(job *Job, artifact Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts[job.id] = artifact
	s.state[job.id] = StateSucceeded
	s.outstanding--

	dependents := s.blocks[job.id]
	delete(s.blocks, job.id)
	for dep := range dependents {
		delete(s.blockedBy[dep], job.id)
		if len(s.blockedBy[dep]) == 0 {
			if waiting, ok := s.blocked[dep]; ok {
				delete(s.blocked, dep)
				s.makeReadyLocked(waiting)
			}
		}
	}
	if s.outstanding == 0 {
		s.cond.Broadcast()
	}
}

func (s *System) handleFailure(job *Job, cause error) {
	s.abort.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state[job.id] = StateFailed
	s.errs[job.id] = zerr.With(errors.Join(domain.ErrJobFailed, cause), "job", job.display.Title())
	s.outstanding--
	s.propagateToDependentsLocked(job.id, cause)
}

func (s *System) handleDeferral(job *Job, d *Deferral) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Resume == nil {
		s.failLocked(job, zerr.With(zerr.New("deferral without resume function"), "job", job.display.Title()))
		return
	}

	waits := make([]ID, 0, len(d.Children)+len(d.WaitFor))
	for _, child := range d.Children {
		if _, err := s.enqueueLocked(child); err != nil {
			s.failLocked(job, err)
			return
		}
		waits = append(waits, child.id)
	}
	waits = append(waits, d.WaitFor...)

	job.fn = d.Resume
	if d.ResumeDisplay != (Display{}) {
		job.display = d.ResumeDisplay
		s.display[job.id] = d.ResumeDisplay
	}

	live := 0
	for _, w := range waits {
		st, known := s.state[w]
		if !known {
			s.failLocked(job, zerr.With(zerr.With(zerr.New("deferral on unknown job"), "job", job.display.Title()), "dep", int64(w)))
			return
		}
		switch st {
		case StateSucceeded:
			continue
		case StateFailed, StateRejected:
			s.state[job.id] = StateDeferred
			s.rejectLocked(job.id, s.errs[w])
			return
		default:
			if path := s.cyclePathLocked(w, job.id); path != nil {
				s.failLocked(job, s.cycleError(job, w, path))
				return
			}
			s.addEdgeLocked(job.id, w)
			live++
		}
	}

	if live == 0 {
		// Every child already finished; resume immediately.
		s.makeReadyLocked(job)
		return
	}
	s.state[job.id] = StateDeferred
	s.blocked[job.id] = job
}

// failLocked is handleFailure for callers already holding the lock.
func (s *System) failLocked(job *Job, cause error) {
	s.abort.Store(true)
	s.state[job.id] = StateFailed
	s.errs[job.id] = zerr.With(errors.Join(domain.ErrJobFailed, cause), "job", job.display.Title())
	s.outstanding--
	s.propagateToDependentsLocked(job.id, cause)
}

// Artifact returns the artifact published by a succeeded job, or the
// error it finished with.
func (s *System) Artifact(id ID) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[id]; ok {
		return nil, err
	}
	if a, ok := s.artifacts[id]; ok {
		return a, nil
	}
	return nil, zerr.With(zerr.New("no result recorded for job"), "id", int64(id))
}

// State returns the current state of a job.
func (s *System) State(id ID) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[id]
}

// Failure is one terminal diagnostic of a session.
type Failure struct {
	ID       ID
	Display  Display
	Err      error
	Rejected bool
}

// Failures returns the session's terminal diagnostics with root causes
// (Failed) ordered before collateral damage (Rejected).
func (s *System) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed, rejected []Failure
	for id, err := range s.errs {
		f := Failure{ID: id, Display: s.display[id], Err: err, Rejected: s.state[id] == StateRejected}
		if f.Rejected {
			rejected = append(rejected, f)
		} else {
			failed = append(failed, f)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].ID < failed[j].ID })
	sort.Slice(rejected, func(i, j int) bool { return rejected[i].ID < rejected[j].ID })
	return append(failed, rejected...)
}
