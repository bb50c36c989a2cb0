package reactor

import (
	"github.com/ValentinKolb/dFlux/lib/cache"
	"github.com/rcrowley/go-metrics"
)

// Config configures a Reactor. A nil *Config selects DefaultConfig.
type Config struct {
	// Debug enables strict invariant checks: store states must be immutable
	// and reducers or getters must not return nil.
	Debug bool

	// CacheLimit bounds the number of memoized getter values (LRU)
	CacheLimit int

	// EvictCount is the number of values evicted at once when the limit is reached
	EvictCount int

	// Sink receives structured dispatch events. Defaults to NopSink.
	Sink DebugSink

	// MetricsRegistry receives the evaluator counters. Defaults to a private registry.
	MetricsRegistry metrics.Registry

	// Options carries settings for UI bindings (such as which getters to
	// expose). The reactor does not interpret them.
	Options map[string]any
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Debug:      false,
		CacheLimit: cache.DefaultLRULimit,
		EvictCount: cache.DefaultEvictCount,
		Sink:       NopSink{},
	}
}

// withDefaults fills unset fields of c from DefaultConfig
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.CacheLimit <= 0 {
		out.CacheLimit = def.CacheLimit
	}
	if out.EvictCount <= 0 {
		out.EvictCount = def.EvictCount
	}
	if out.Sink == nil {
		out.Sink = def.Sink
	}
	if out.MetricsRegistry == nil {
		out.MetricsRegistry = metrics.NewRegistry()
	}
	return &out
}
