// Package sink provides reactor.DebugSink implementations.
//
//   - LoggingSink: writes dispatches, store changes and notification passes to
//     the dragonboat logger "dispatch" (the structured replacement of the
//     console group output of a debug build).
//   - MetricsSink: counts dispatches per action type, failed dispatches,
//     store changes and notification passes in a VictoriaMetrics set and
//     records dispatch durations in a histogram. WritePrometheus exposes
//     the set in the Prometheus text format.
//   - TimingSink: keeps dispatch durations per action type in memory and
//     summarizes them with util.NewStats.
//   - Multi: fans every event out to several sinks.
//
// Example usage:
//
//	timing := sink.NewTimingSink()
//	r := reactor.New(&reactor.Config{
//		Debug: true,
//		Sink:  sink.Multi(sink.NewLoggingSink(), timing),
//	})
package sink
