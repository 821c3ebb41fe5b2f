package papyrus

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
)

// Env is the environment a value tree is resolved against: the active
// mode's variable bindings plus the directories relative-path calls are
// anchored to.
type Env struct {
	Vars        map[string]string
	ConfigDir   string // absolute directory of the ANUBIS file
	ProjectRoot string // absolute project root
	ConfigPath  string // for diagnostics
	Globber     *Globber
}

// Resolve walks an unresolved value and evaluates every call and concat
// against env. The input is not mutated; resolved subtrees may be shared
// with the input where no rewriting was needed.
func Resolve(v *Value, env *Env) (*Value, error) {
	if env.Globber == nil {
		env.Globber = NewGlobber()
	}
	return resolve(v, env)
}

func resolveErr(env *Env, pos Pos, format string, args ...any) error {
	err := zerr.Wrap(domain.ErrResolve, fmt.Sprintf(format, args...))
	err = zerr.With(err, "file", env.ConfigPath)
	return zerr.With(err, "pos", pos.String())
}

func resolve(v *Value, env *Env) (*Value, error) {
	switch v.Kind {
	case StringKind, NumberKind, BoolKind, WildcardKind, IdentKind:
		return v, nil
	case ArrayKind, TupleKind:
		elems, err := resolveAll(v.Elems, env)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: v.Kind, Elems: elems, Pos: v.Pos}, nil
	case MapKind:
		entries := make([]MapEntry, len(v.Entries))
		for i, e := range v.Entries {
			rv, err := resolve(e.Value, env)
			if err != nil {
				return nil, err
			}
			entries[i] = MapEntry{Key: e.Key, Value: rv}
		}
		return &Value{Kind: MapKind, Entries: entries, Pos: v.Pos}, nil
	case ObjectKind:
		fields, err := resolveFields(v.Fields, env)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: ObjectKind, Str: v.Str, Fields: fields, Pos: v.Pos}, nil
	case CallKind:
		return resolveCall(v, env)
	case ConcatKind:
		left, err := resolve(v.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := resolve(v.Right, env)
		if err != nil {
			return nil, err
		}
		return concat(left, right, env, v.Pos)
	}
	return nil, resolveErr(env, v.Pos, "unresolvable value kind %s", v.Kind)
}

func resolveAll(vs []*Value, env *Env) ([]*Value, error) {
	out := make([]*Value, len(vs))
	for i, v := range vs {
		rv, err := resolve(v, env)
		if err != nil {
			return nil, err
		}
		out[i] = rv
	}
	return out, nil
}

func resolveFields(fs []Field, env *Env) ([]Field, error) {
	out := make([]Field, len(fs))
	for i, f := range fs {
		rv, err := resolve(f.Value, env)
		if err != nil {
			return nil, zerr.With(err, "field", f.Name)
		}
		out[i] = Field{Name: f.Name, Value: rv}
	}
	return out, nil
}

func resolveCall(v *Value, env *Env) (*Value, error) {
	switch v.Str {
	case "glob":
		return resolveGlob(v, env)
	case "RelPath":
		if len(v.Elems) != 1 || len(v.Fields) != 0 {
			return nil, resolveErr(env, v.Pos, "RelPath takes exactly one argument")
		}
		return relPath(v.Elems[0], env)
	case "RelPaths":
		if len(v.Elems) != 1 || len(v.Fields) != 0 {
			return nil, resolveErr(env, v.Pos, "RelPaths takes exactly one array argument")
		}
		arg, err := resolve(v.Elems[0], env)
		if err != nil {
			return nil, err
		}
		if arg.Kind != ArrayKind {
			return nil, resolveErr(env, v.Pos, "RelPaths expects an array, got %s", arg.Kind)
		}
		elems := make([]*Value, len(arg.Elems))
		for i, e := range arg.Elems {
			rp, err := relPath(e, env)
			if err != nil {
				return nil, err
			}
			elems[i] = rp
		}
		return &Value{Kind: ArrayKind, Elems: elems, Pos: v.Pos}, nil
	case "select":
		return resolveSelect(v, env)
	default:
		// Not a builtin: an object construction in expression position.
		if len(v.Elems) > 0 {
			return nil, resolveErr(env, v.Pos, "unknown function %q", v.Str)
		}
		fields, err := resolveFields(v.Fields, env)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: ObjectKind, Str: v.Str, Fields: fields, Pos: v.Pos}, nil
	}
}

func relPath(v *Value, env *Env) (*Value, error) {
	rv, err := resolve(v, env)
	if err != nil {
		return nil, err
	}
	if rv.Kind != StringKind {
		return nil, resolveErr(env, v.Pos, "RelPath expects a string, got %s", rv.Kind)
	}
	joined := path.Clean(path.Join(filepath.ToSlash(env.ConfigDir), rv.Str))
	root := filepath.ToSlash(env.ProjectRoot)
	if joined != root && !strings.HasPrefix(joined, root+"/") {
		return nil, resolveErr(env, v.Pos, "RelPath %q escapes the project root", rv.Str)
	}
	return &Value{Kind: StringKind, Str: joined, Pos: v.Pos}, nil
}

func resolveGlob(v *Value, env *Env) (*Value, error) {
	var includes, excludes []string
	arg := func(name string, idx int) (*Value, error) {
		for _, f := range v.Fields {
			if f.Name == name {
				return resolve(f.Value, env)
			}
		}
		if idx < len(v.Elems) {
			return resolve(v.Elems[idx], env)
		}
		return nil, nil
	}

	inc, err := arg("includes", 0)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, resolveErr(env, v.Pos, "glob requires an includes array")
	}
	includes, ok := inc.Strings()
	if !ok {
		return nil, resolveErr(env, v.Pos, "glob includes must be an array of strings")
	}
	exc, err := arg("excludes", 1)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		excludes, ok = exc.Strings()
		if !ok {
			return nil, resolveErr(env, v.Pos, "glob excludes must be an array of strings")
		}
	}

	paths, err := env.Globber.Glob(env.ConfigDir, env.ProjectRoot, includes, excludes)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "glob failed"), "file", env.ConfigPath)
	}
	elems := make([]*Value, len(paths))
	for i, p := range paths {
		elems[i] = &Value{Kind: StringKind, Str: p, Pos: v.Pos}
	}
	return &Value{Kind: ArrayKind, Elems: elems, Pos: v.Pos}, nil
}

func resolveSelect(v *Value, env *Env) (*Value, error) {
	if len(v.Elems) != 2 {
		return nil, resolveErr(env, v.Pos, "malformed select")
	}
	keys, entries := v.Elems[0], v.Elems[1]

	inputs := make([]string, len(keys.Elems))
	values := make([]string, len(keys.Elems))
	for i, k := range keys.Elems {
		inputs[i] = k.Str
		val, ok := env.Vars[k.Str]
		if !ok {
			return nil, resolveErr(env, v.Pos, "select references variable %q which the mode does not bind (vars: %s)", k.Str, formatVars(env.Vars))
		}
		values[i] = val
	}

	var deflt *Value
	for _, e := range entries.Entries {
		if e.Key.Default {
			deflt = e.Value
			continue
		}
		if len(e.Key.Terms) != len(inputs) {
			return nil, resolveErr(env, e.Key.Pos, "select key %s has %d terms, expected %d", e.Key, len(e.Key.Terms), len(inputs))
		}
		if matchKey(e.Key, values) {
			return resolve(e.Value, env)
		}
	}
	if deflt != nil {
		return resolve(deflt, env)
	}

	avail := make([]string, 0, len(entries.Entries))
	for _, e := range entries.Entries {
		avail = append(avail, e.Key.String())
	}
	return nil, resolveErr(env, v.Pos,
		"select matched nothing: inputs (%s) resolved to (%s); available keys: %s",
		strings.Join(inputs, ", "), strings.Join(values, ", "), strings.Join(avail, ", "))
}

// matchKey matches a key tuple positionally against the resolved variable
// values. A _ term matches anything; a disjunction matches any alternative.
func matchKey(key MapKey, values []string) bool {
	for i, term := range key.Terms {
		if term.Any {
			continue
		}
		hit := false
		for _, alt := range term.Alts {
			if alt == values[i] {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func formatVars(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + vars[k]
	}
	return strings.Join(parts, ", ")
}

func concat(left, right *Value, env *Env, pos Pos) (*Value, error) {
	switch {
	case left.Kind == ArrayKind && right.Kind == ArrayKind:
		elems := make([]*Value, 0, len(left.Elems)+len(right.Elems))
		elems = append(elems, left.Elems...)
		elems = append(elems, right.Elems...)
		return &Value{Kind: ArrayKind, Elems: elems, Pos: pos}, nil
	case left.Kind == StringKind && right.Kind == StringKind:
		return &Value{Kind: StringKind, Str: left.Str + right.Str, Pos: pos}, nil
	case left.Kind == MapKind && right.Kind == MapKind:
		// Right-biased: on key collision the right entry wins, keeping the
		// left map's position so ordering stays stable.
		entries := make([]MapEntry, 0, len(left.Entries)+len(right.Entries))
		taken := map[string]int{}
		for _, e := range left.Entries {
			taken[e.Key.String()] = len(entries)
			entries = append(entries, e)
		}
		for _, e := range right.Entries {
			if i, ok := taken[e.Key.String()]; ok {
				entries[i] = e
			} else {
				entries = append(entries, e)
			}
		}
		return &Value{Kind: MapKind, Entries: entries, Pos: pos}, nil
	default:
		return nil, resolveErr(env, pos, "cannot concatenate %s + %s", left.Kind, right.Kind)
	}
}

// Globber evaluates glob patterns with a per-session result cache, so
// repeated resolution of the same config under different modes does not
// rescan the tree.
type Globber struct {
	cache *lru.Cache[string, []string]
}

const globCacheSize = 512

// NewGlobber creates a Globber with an empty cache.
func NewGlobber() *Globber {
	cache, _ := lru.New[string, []string](globCacheSize)
	return &Globber{cache: cache}
}

// Glob expands includes minus excludes relative to configDir. Results are
// project-root-relative forward-slash paths, sorted, without duplicates.
// A pattern that matches nothing is not an error. ** crosses directory
// boundaries, * does not.
func (g *Globber) Glob(configDir, projectRoot string, includes, excludes []string) ([]string, error) {
	key := configDir + "\x00" + strings.Join(includes, "\x01") + "\x00" + strings.Join(excludes, "\x01")
	if cached, ok := g.cache.Get(key); ok {
		return cached, nil
	}

	seen := map[string]struct{}{}
	for _, pattern := range includes {
		matches, err := doublestar.Glob(filepath.Join(configDir, filepath.FromSlash(pattern)))
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "bad glob pattern"), "pattern", pattern)
		}
	match:
		for _, m := range matches {
			rel, err := filepath.Rel(configDir, m)
			if err != nil {
				return nil, zerr.Wrap(err, "glob match outside config dir")
			}
			relSlash := filepath.ToSlash(rel)
			for _, ex := range excludes {
				hit, err := doublestar.Match(ex, relSlash)
				if err != nil {
					return nil, zerr.With(zerr.Wrap(err, "bad glob pattern"), "pattern", ex)
				}
				if hit {
					continue match
				}
			}
			rootRel, err := filepath.Rel(projectRoot, m)
			if err != nil {
				return nil, zerr.Wrap(err, "glob match outside project root")
			}
			seen[filepath.ToSlash(rootRel)] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	g.cache.Add(key, out)
	return out, nil
}
