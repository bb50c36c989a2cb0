package evaluator

import (
	"github.com/ValentinKolb/dFlux/lib/cache"
	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
)

var log = logger.GetLogger("evaluator")

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrReentrantEvaluate is returned when Evaluate is called from inside a compute function
	ErrReentrantEvaluate = fault.New(fault.CodeReentrancy, "Evaluate may not be called within a Getter's computeFn")
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config configures an Evaluator. A nil *Config selects DefaultConfig.
type Config struct {
	// Debug turns a nil result of a compute function into an invariant error
	Debug bool
	// Cache is the empty memo table to start from (and to return to on Reset).
	// Defaults to cache.NewLRUCache(cache.DefaultLRULimit, cache.DefaultEvictCount).
	Cache cache.Cache
	// Registry receives the evaluator counters. Defaults to a private registry.
	Registry metrics.Registry
}

// DefaultConfig returns the default evaluator configuration
func DefaultConfig() *Config {
	return &Config{
		Cache:    cache.NewLRUCache(cache.DefaultLRULimit, cache.DefaultEvictCount),
		Registry: metrics.NewRegistry(),
	}
}

// --------------------------------------------------------------------------
// Evaluator
// --------------------------------------------------------------------------

// Evaluator resolves key paths and getters against state, memoizing getter
// results in a persistent cache.
//
// Thread-safety: an Evaluator is not safe for concurrent use. It belongs to
// exactly one reactor, which serializes all calls.
type Evaluator struct {
	debug      bool
	emptyCache cache.Cache
	cache      cache.Cache
	stats      *Stats

	// applyingComputeFn is set while a compute function runs
	applyingComputeFn bool
	// reentered records a rejected Evaluate call during the current compute function
	reentered bool

	// version is a monotonic state version; it advances whenever a state with
	// a different hash than the last one is evaluated
	version       uint64
	lastStateHash uint32
	seenState     bool
}

// New creates an evaluator
func New(config *Config) *Evaluator {
	def := DefaultConfig()
	if config == nil {
		config = def
	}
	c := config.Cache
	if c == nil {
		c = def.Cache
	}
	registry := config.Registry
	if registry == nil {
		registry = def.Registry
	}

	return &Evaluator{
		debug:      config.Debug,
		emptyCache: c,
		cache:      c,
		stats:      newStats(registry),
	}
}

// Evaluate resolves dep against state. Key paths are looked up directly
// (a missing path yields nil); getters are memoized.
func (e *Evaluator) Evaluate(state *immutable.Map, dep getter.Dependency) (any, error) {
	if e.applyingComputeFn {
		e.reentered = true
		e.stats.Reentrant.Inc(1)
		return nil, ErrReentrantEvaluate
	}

	switch d := dep.(type) {
	case getter.KeyPath:
		v, _ := state.GetIn(d.Keys())
		return v, nil
	case *getter.Getter:
		if err := d.Validate(); err != nil {
			return nil, err
		}
		stateHash := state.Hash()
		return e.evaluateGetter(state, stateHash, e.versionFor(stateHash), d)
	default:
		return nil, fault.New(fault.CodeInvalidGetter, "evaluate must be passed a keyPath or Getter")
	}
}

// EvaluateToNative evaluates dep and converts the result with immutable.ToNative
func (e *Evaluator) EvaluateToNative(state *immutable.Map, dep getter.Dependency) (any, error) {
	v, err := e.Evaluate(state, dep)
	if err != nil {
		return nil, err
	}
	return immutable.ToNative(v), nil
}

func (e *Evaluator) versionFor(stateHash uint32) uint64 {
	if !e.seenState || stateHash != e.lastStateHash {
		e.version++
		e.lastStateHash = stateHash
		e.seenState = true
	}
	return e.version
}

func (e *Evaluator) evaluateGetter(state *immutable.Map, stateHash uint32, version uint64, g *getter.Getter) (any, error) {
	entry, cached := e.cache.Lookup(g)
	if cached && entry.StateHash == stateHash {
		e.cache = e.cache.Hit(g)
		e.stats.Hits.Inc(1)
		return entry.Value, nil
	}

	args := make([]any, g.NumDeps())
	for i := range args {
		switch d := g.Dep(i).(type) {
		case getter.KeyPath:
			args[i], _ = state.GetIn(d.Keys())
		case *getter.Getter:
			v, err := e.evaluateGetter(state, stateHash, version, d)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
	}

	if cached && argsEqual(entry.Args, args) {
		// same inputs under a different state: keep the value, restamp the entry
		entry.StateHash = stateHash
		entry.DispatchID = version
		if err := e.store(g, entry); err != nil {
			return nil, err
		}
		e.stats.Reuses.Inc(1)
		return entry.Value, nil
	}

	value, err := e.applyCompute(g, args)
	if err != nil {
		return nil, err
	}
	if err := e.store(g, cache.Entry{Value: value, StateHash: stateHash, DispatchID: version, Args: args}); err != nil {
		return nil, err
	}
	e.stats.Computes.Inc(1)
	return value, nil
}

func (e *Evaluator) store(g *getter.Getter, entry cache.Entry) error {
	next, err := e.cache.Miss(g, entry)
	if err != nil {
		return err
	}
	e.cache = next
	return nil
}

// applyCompute runs the compute function of g with the reentrancy guard set.
// The guard is cleared on every exit path, including panics.
func (e *Evaluator) applyCompute(g *getter.Getter, args []any) (any, error) {
	e.applyingComputeFn = true
	e.reentered = false
	defer func() {
		e.applyingComputeFn = false
		e.reentered = false
	}()

	// args is kept as the cache entry's arguments, compute gets its own copy
	value, err := g.Compute(append([]any(nil), args...))
	if err != nil {
		return nil, err
	}
	if e.reentered {
		// the compute function swallowed the inner error; the result is not trustworthy
		return nil, ErrReentrantEvaluate
	}
	// a key path resolves to nil when nothing is stored there
	if e.debug && value == nil && !g.IsKeyPathGetter() {
		return nil, fault.Newf(fault.CodeInvariant, "getter %s returned nil", g)
	}
	return value, nil
}

func argsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !immutable.Is(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Reset drops all memoized values
func (e *Evaluator) Reset() {
	log.Debugf("resetting evaluator cache (%d entries)", e.cache.Len())
	e.cache = e.emptyCache
	e.seenState = false
}

// Cache returns the current memo table
func (e *Evaluator) Cache() cache.Cache {
	return e.cache
}

// Stats returns a snapshot of the evaluator counters
func (e *Evaluator) Stats() StatsSnapshot {
	return e.stats.snapshot(e.cache.Len())
}
