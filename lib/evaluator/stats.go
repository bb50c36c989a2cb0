package evaluator

import (
	"github.com/rcrowley/go-metrics"
)

// Metric names registered by every evaluator
const (
	MetricHits      = "evaluator.hits"
	MetricReuses    = "evaluator.reuses"
	MetricComputes  = "evaluator.computes"
	MetricReentrant = "evaluator.reentrant"
)

// Stats holds the evaluator counters
type Stats struct {
	// Hits counts cache hits on the fast path (same state hash)
	Hits metrics.Counter
	// Reuses counts stale entries reused because their dependency values were unchanged
	Reuses metrics.Counter
	// Computes counts compute function invocations that produced a value
	Computes metrics.Counter
	// Reentrant counts rejected Evaluate calls from inside a compute function
	Reentrant metrics.Counter
}

// StatsSnapshot is a point in time copy of the counters
type StatsSnapshot struct {
	Hits      int64 `json:"hits"`
	Reuses    int64 `json:"reuses"`
	Computes  int64 `json:"computes"`
	Reentrant int64 `json:"reentrant"`
	CacheSize int   `json:"cacheSize"`
}

func newStats(r metrics.Registry) *Stats {
	return &Stats{
		Hits:      metrics.GetOrRegisterCounter(MetricHits, r),
		Reuses:    metrics.GetOrRegisterCounter(MetricReuses, r),
		Computes:  metrics.GetOrRegisterCounter(MetricComputes, r),
		Reentrant: metrics.GetOrRegisterCounter(MetricReentrant, r),
	}
}

func (s *Stats) snapshot(cacheSize int) StatsSnapshot {
	return StatsSnapshot{
		Hits:      s.Hits.Count(),
		Reuses:    s.Reuses.Count(),
		Computes:  s.Computes.Count(),
		Reentrant: s.Reentrant.Count(),
		CacheSize: cacheSize,
	}
}
