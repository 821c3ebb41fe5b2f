// Package registry caches parsed and resolved configuration per config
// path and modes, toolchains, and rule instances per target. All lookups
// are safe for concurrent use with at-most-one concurrent loader per key.
package registry

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"

	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/core/ports"
	"github.com/anubis-build/anubis/internal/engine/jobs"
	"github.com/anubis-build/anubis/internal/papyrus"
)

// Rule is a projected rule record able to seed its root job.
type Rule interface {
	RuleName() string
	Target() domain.Target
	CreateRootJob(sys *jobs.System, mode *domain.Mode, tc *domain.Toolchain) (*jobs.Job, error)
}

// RuleTypeInfo maps an object type name to its rule factory. Registering
// one is the only sanctioned way to add rule types.
type RuleTypeInfo struct {
	Name  string
	Parse func(target domain.Target, obj *papyrus.Value) (Rule, error)
}

// Registry is the per-session configuration cache.
type Registry struct {
	root    string
	log     ports.Logger
	globber *papyrus.Globber

	sf singleflight.Group

	mu         sync.RWMutex
	raw        map[string]*papyrus.Value
	resolved   map[string]*papyrus.Value
	modes      map[domain.Target]*domain.Mode
	toolchains map[string]*domain.Toolchain
	rules      map[string]Rule
	typeinfos  map[string]RuleTypeInfo
	jobIDs     map[uint64]jobs.ID
}

// New creates a registry rooted at the absolute project root.
func New(root string, log ports.Logger) *Registry {
	return &Registry{
		root:       root,
		log:        log,
		globber:    papyrus.NewGlobber(),
		raw:        make(map[string]*papyrus.Value),
		resolved:   make(map[string]*papyrus.Value),
		modes:      make(map[domain.Target]*domain.Mode),
		toolchains: make(map[string]*domain.Toolchain),
		rules:      make(map[string]Rule),
		typeinfos:  make(map[string]RuleTypeInfo),
		jobIDs:     make(map[uint64]jobs.ID),
	}
}

// Root returns the absolute project root.
func (r *Registry) Root() string { return r.root }

// Logger returns the session logger.
func (r *Registry) Logger() ports.Logger { return r.log }

// RegisterRuleType registers a rule factory under its object type name.
func (r *Registry) RegisterRuleType(ti RuleTypeInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.typeinfos[ti.Name]; dup {
		return zerr.With(zerr.New("rule type already registered"), "type", ti.Name)
	}
	r.typeinfos[ti.Name] = ti
	return nil
}

// Raw returns the parsed but unresolved value tree of a config file.
func (r *Registry) Raw(configPath string) (*papyrus.Value, error) {
	r.mu.RLock()
	v, ok := r.raw[configPath]
	r.mu.RUnlock()
	if ok {
		return v, nil
	}
	res, err, _ := r.sf.Do("raw\x00"+configPath, func() (any, error) {
		r.mu.RLock()
		v, ok := r.raw[configPath]
		r.mu.RUnlock()
		if ok {
			return v, nil
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to read config file")
		}
		parsed, err := papyrus.ParseFile(string(data), configPath)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.raw[configPath] = parsed
		r.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*papyrus.Value), nil
}

// Resolved returns the config file's value tree resolved under the mode.
func (r *Registry) Resolved(configPath string, mode *domain.Mode) (*papyrus.Value, error) {
	key := configPath + "\x00" + mode.Name
	r.mu.RLock()
	v, ok := r.resolved[key]
	r.mu.RUnlock()
	if ok {
		return v, nil
	}
	res, err, _ := r.sf.Do("resolved\x00"+key, func() (any, error) {
		r.mu.RLock()
		v, ok := r.resolved[key]
		r.mu.RUnlock()
		if ok {
			return v, nil
		}
		raw, err := r.Raw(configPath)
		if err != nil {
			return nil, err
		}
		env := &papyrus.Env{
			Vars:        mode.Vars,
			ConfigDir:   filepath.Dir(configPath),
			ProjectRoot: r.root,
			ConfigPath:  configPath,
			Globber:     r.globber,
		}
		resolved, err := papyrus.Resolve(raw, env)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.resolved[key] = resolved
		r.mu.Unlock()
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*papyrus.Value), nil
}

// Mode loads and projects the mode declared at target. Mode configs are
// resolved against host variables only; the mode's own bindings cannot
// depend on themselves.
func (r *Registry) Mode(target domain.Target) (*domain.Mode, error) {
	r.mu.RLock()
	m, ok := r.modes[target]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}
	res, err, _ := r.sf.Do("mode\x00"+target.String(), func() (any, error) {
		r.mu.RLock()
		m, ok := r.modes[target]
		r.mu.RUnlock()
		if ok {
			return m, nil
		}
		host := &domain.Mode{Name: "host"}
		host.InjectHostVars()
		obj, err := r.namedObject(target, host)
		if err != nil {
			return nil, err
		}
		mode := &domain.Mode{}
		if err := papyrus.ProjectObject(obj, "mode", mode, r.log.Warn); err != nil {
			return nil, zerr.With(err, "target", target.String())
		}
		mode.Target = target
		mode.InjectHostVars()
		r.mu.Lock()
		r.modes[target] = mode
		r.mu.Unlock()
		return mode, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.Mode), nil
}

// Toolchain loads and projects the toolchain declared at target, resolved
// under mode.
func (r *Registry) Toolchain(mode *domain.Mode, target domain.Target) (*domain.Toolchain, error) {
	key := mode.Name + "\x00" + target.String()
	r.mu.RLock()
	tc, ok := r.toolchains[key]
	r.mu.RUnlock()
	if ok {
		return tc, nil
	}
	res, err, _ := r.sf.Do("toolchain\x00"+key, func() (any, error) {
		r.mu.RLock()
		tc, ok := r.toolchains[key]
		r.mu.RUnlock()
		if ok {
			return tc, nil
		}
		obj, err := r.namedObject(target, mode)
		if err != nil {
			return nil, err
		}
		loaded := &domain.Toolchain{}
		if err := papyrus.ProjectObject(obj, "toolchain", loaded, r.log.Warn); err != nil {
			return nil, zerr.With(err, "target", target.String())
		}
		loaded.Target = target
		r.mu.Lock()
		r.toolchains[key] = loaded
		r.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.Toolchain), nil
}

// Rule loads, resolves, and projects the rule declared at target under
// mode, caching the instance per (mode, target).
func (r *Registry) Rule(mode *domain.Mode, target domain.Target) (Rule, error) {
	key := mode.Name + "\x00" + target.String()
	r.mu.RLock()
	rule, ok := r.rules[key]
	r.mu.RUnlock()
	if ok {
		return rule, nil
	}
	res, err, _ := r.sf.Do("rule\x00"+key, func() (any, error) {
		r.mu.RLock()
		rule, ok := r.rules[key]
		r.mu.RUnlock()
		if ok {
			return rule, nil
		}
		obj, err := r.namedObject(target, mode)
		if err != nil {
			return nil, err
		}
		r.mu.RLock()
		ti, known := r.typeinfos[obj.Str]
		r.mu.RUnlock()
		if !known {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrUnknownRuleType, "no rule registered for object type"), "type", obj.Str), "target", target.String())
		}
		parsed, err := ti.Parse(target, obj)
		if err != nil {
			return nil, zerr.With(err, "target", target.String())
		}
		r.mu.Lock()
		r.rules[key] = parsed
		r.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(Rule), nil
}

// namedObject finds the object declared under target's name in its
// resolved config file.
func (r *Registry) namedObject(target domain.Target, mode *domain.Mode) (*papyrus.Value, error) {
	file, err := r.Resolved(target.ConfigPath(r.root), mode)
	if err != nil {
		return nil, err
	}
	for _, obj := range file.Elems {
		if name := obj.Field("name"); name != nil && name.Kind == papyrus.StringKind && name.Str == target.Name {
			return obj, nil
		}
	}
	return nil, zerr.With(zerr.New("target not declared in config"), "target", target.String())
}

// EnsureJob memoizes job creation per (mode, target, substep): the first
// caller's create function runs and the job is enqueued; later callers
// get the existing id and become dependents of it.
func (r *Registry) EnsureJob(sys *jobs.System, mode *domain.Mode, target domain.Target, substep string, create func() (*jobs.Job, error)) (jobs.ID, error) {
	key := jobKey(mode.Name, target, substep)

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.jobIDs[key]; ok {
		return id, nil
	}
	job, err := create()
	if err != nil {
		return 0, err
	}
	id, err := sys.Enqueue(job)
	if err != nil {
		return 0, err
	}
	r.jobIDs[key] = id
	return id, nil
}

func jobKey(modeName string, t domain.Target, substep string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(modeName)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(t.String())
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(substep)
	return h.Sum64()
}
