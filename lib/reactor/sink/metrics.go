package sink

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/dFlux/lib/reactor"
	"github.com/VictoriaMetrics/metrics"
)

// MetricsSink records reactor events in a VictoriaMetrics set
type MetricsSink struct {
	set *metrics.Set
}

// NewMetricsSink creates a sink with its own metrics set
func NewMetricsSink() *MetricsSink {
	return &MetricsSink{set: metrics.NewSet()}
}

// Set returns the underlying metrics set
func (s *MetricsSink) Set() *metrics.Set {
	return s.set
}

// WritePrometheus writes all metrics in the Prometheus text format to w
func (s *MetricsSink) WritePrometheus(w io.Writer) {
	s.set.WritePrometheus(w)
}

func (s *MetricsSink) OnDispatchStart(reactor.DispatchEvent) {}

func (s *MetricsSink) OnStoreHandled(e reactor.StoreEvent) {
	if e.Changed {
		s.set.GetOrCreateCounter(fmt.Sprintf(`dflux_store_changes_total{store=%q}`, e.StoreID)).Inc()
	}
}

func (s *MetricsSink) OnDispatchEnd(e reactor.DispatchEvent) {
	s.set.GetOrCreateCounter(fmt.Sprintf(`dflux_dispatches_total{action=%q}`, e.ActionType)).Inc()
	s.set.GetOrCreateHistogram(`dflux_dispatch_duration_seconds`).Update(e.Duration.Seconds())
}

func (s *MetricsSink) OnDispatchError(e reactor.DispatchEvent, _ error) {
	s.set.GetOrCreateCounter(fmt.Sprintf(`dflux_dispatch_errors_total{action=%q}`, e.ActionType)).Inc()
}

func (s *MetricsSink) OnNotify(e reactor.NotifyEvent) {
	s.set.GetOrCreateCounter(fmt.Sprintf(`dflux_notify_passes_total{cause=%q}`, e.Cause)).Inc()
}

func (s *MetricsSink) OnRegister(reactor.RegisterEvent) {
	s.set.GetOrCreateCounter(`dflux_store_registrations_total`).Inc()
}
