package getter

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/immutable"
)

// --------------------------------------------------------------------------
// Dependency
// --------------------------------------------------------------------------

// Dependency is either a KeyPath or a *Getter. The set of implementations is
// closed; the evaluator switches on the concrete type.
type Dependency interface {
	immutable.Hasher
	immutable.Equaler
	isDependency()
}

// --------------------------------------------------------------------------
// KeyPath
// --------------------------------------------------------------------------

// KeyPath locates a value inside the state tree. Keys are map keys (usually
// strings) or vector indexes.
type KeyPath struct {
	keys *immutable.Vector
}

// NewKeyPath creates a key path from the given keys
func NewKeyPath(keys ...any) KeyPath {
	return KeyPath{keys: immutable.VectorOf(keys...)}
}

// ParseKeyPath splits a dotted path ("todos.items.0") into a KeyPath.
// Segments made of digits only become integer keys.
func ParseKeyPath(s string) KeyPath {
	if s == "" {
		return NewKeyPath()
	}
	parts := strings.Split(s, ".")
	keys := make([]any, len(parts))
	for i, p := range parts {
		if n, err := strconv.Atoi(p); err == nil && n >= 0 {
			keys[i] = n
		} else {
			keys[i] = p
		}
	}
	return NewKeyPath(keys...)
}

func (KeyPath) isDependency() {}

// Keys returns the keys of the path
func (k KeyPath) Keys() []any {
	return k.keys.ToSlice()
}

// Len returns the number of keys
func (k KeyPath) Len() int {
	return k.keys.Len()
}

// Head returns the first key (the store id for paths into reactor state)
func (k KeyPath) Head() (any, bool) {
	return k.keys.Get(0)
}

func (k KeyPath) Hash() uint32 {
	return k.keys.Hash()
}

func (k KeyPath) Equals(other any) bool {
	o, ok := other.(KeyPath)
	return ok && immutable.Is(k.keys, o.keys)
}

func (k KeyPath) String() string {
	parts := make([]string, 0, k.Len())
	k.keys.Range(func(_ int, key any) bool {
		parts = append(parts, fmt.Sprint(key))
		return true
	})
	return "[" + strings.Join(parts, ", ") + "]"
}

// --------------------------------------------------------------------------
// Getter
// --------------------------------------------------------------------------

// ComputeFunc derives a value from the resolved dependency values, passed in
// dependency order. It must be pure and must not evaluate other getters.
type ComputeFunc func(args ...any) (any, error)

// identityID marks getters created by FromKeyPath
const identityID = 1

// nextID hands out getter ids; ids below 2 are reserved
var nextID atomic.Uint64

func init() {
	nextID.Store(identityID)
}

// Getter is a list of dependencies plus a compute function. Two getters are
// equal when they were created by the same New call (or both by FromKeyPath
// with equal paths); the id stands in for the identity of the function.
//
// Getters are immutable after construction; their hash is computed once.
type Getter struct {
	id      uint64
	name    string
	deps    []Dependency
	compute ComputeFunc
	hash    uint32
	invalid error
}

// New creates a getter computing fn over deps
func New(fn ComputeFunc, deps ...Dependency) *Getter {
	return newGetter(nextID.Add(1), "", fn, deps)
}

// Named creates a getter with a name used in logs and errors
func Named(name string, fn ComputeFunc, deps ...Dependency) *Getter {
	return newGetter(nextID.Add(1), name, fn, deps)
}

// FromKeyPath wraps a key path in a getter returning the value at that path.
// Getters created from equal paths are equal, so they share cache entries.
func FromKeyPath(path KeyPath) *Getter {
	return newGetter(identityID, "", identity, []Dependency{path})
}

// From converts a dependency to a getter
func From(dep Dependency) *Getter {
	switch d := dep.(type) {
	case *Getter:
		return d
	case KeyPath:
		return FromKeyPath(d)
	}
	return nil
}

func identity(args ...any) (any, error) {
	return args[0], nil
}

func newGetter(id uint64, name string, fn ComputeFunc, deps []Dependency) *Getter {
	g := &Getter{id: id, name: name, compute: fn, deps: append([]Dependency(nil), deps...)}
	h := uint32(id)
	for _, d := range g.deps {
		if d != nil {
			h = 31*h + d.Hash()
		}
	}
	g.hash = h & 0x7fffffff
	g.invalid = g.validate()
	return g
}

func (*Getter) isDependency() {}

// ID returns the unique id of the getter
func (g *Getter) ID() uint64 {
	return g.id
}

// Deps returns the dependencies of the getter
func (g *Getter) Deps() []Dependency {
	return append([]Dependency(nil), g.deps...)
}

// NumDeps returns the number of dependencies
func (g *Getter) NumDeps() int {
	return len(g.deps)
}

// Dep returns the dependency at index i
func (g *Getter) Dep(i int) Dependency {
	return g.deps[i]
}

// Compute invokes the compute function with the resolved dependency values
func (g *Getter) Compute(args []any) (any, error) {
	return g.compute(args...)
}

// Validate checks that the getter is well-formed: it must have a compute
// function and no nil dependencies. The check runs once on construction.
func (g *Getter) Validate() error {
	if g == nil {
		return fault.New(fault.CodeInvalidGetter, "evaluate must be passed a keyPath or Getter")
	}
	if g.compute == nil {
		// zero value, not built by New
		return fault.Newf(fault.CodeInvalidGetter, "getter %s has no compute function", g)
	}
	return g.invalid
}

// validate walks the dependencies. Nested getters were validated when they
// were built.
func (g *Getter) validate() error {
	if g.compute == nil {
		return fault.Newf(fault.CodeInvalidGetter, "getter %s has no compute function", g)
	}
	for i, d := range g.deps {
		if d == nil {
			return fault.Newf(fault.CodeInvalidGetter, "getter %s has a nil dependency at position %d", g, i)
		}
		if sub, ok := d.(*Getter); ok {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsKeyPathGetter reports whether the getter was created by FromKeyPath
func (g *Getter) IsKeyPathGetter() bool {
	return g.id == identityID
}

func (g *Getter) Hash() uint32 {
	return g.hash
}

func (g *Getter) Equals(other any) bool {
	o, ok := other.(*Getter)
	if !ok || g == nil || o == nil {
		return ok && g == o
	}
	if g == o {
		return true
	}
	if g.id != o.id || g.hash != o.hash || len(g.deps) != len(o.deps) {
		return false
	}
	for i := range g.deps {
		if !immutable.Is(g.deps[i], o.deps[i]) {
			return false
		}
	}
	return true
}

func (g *Getter) String() string {
	if g == nil {
		return "Getter(nil)"
	}
	if g.IsKeyPathGetter() && len(g.deps) == 1 {
		return fmt.Sprintf("Getter%v", g.deps[0])
	}
	if g.name != "" {
		return g.name
	}
	return fmt.Sprintf("Getter#%d", g.id)
}
