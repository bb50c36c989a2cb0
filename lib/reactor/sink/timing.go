package sink

import (
	"sort"
	"sync"

	"github.com/ValentinKolb/dFlux/lib/reactor"
	"github.com/ValentinKolb/dFlux/lib/util"
)

// TimingSink collects the duration (in milliseconds) of every completed
// dispatch per action type. It is safe to read while the reactor runs on
// another goroutine.
type TimingSink struct {
	mu        sync.Mutex
	durations map[string][]float64
	errors    map[string]int
}

// NewTimingSink creates an empty timing sink
func NewTimingSink() *TimingSink {
	return &TimingSink{
		durations: make(map[string][]float64),
		errors:    make(map[string]int),
	}
}

// ActionTiming summarizes the dispatches of one action type
type ActionTiming struct {
	ActionType string     `json:"action_type" yaml:"action_type"`
	Durations  util.Stats `json:"durations_ms" yaml:"durations_ms"`
	Errors     int        `json:"errors" yaml:"errors"`
}

// Stats returns one summary per action type, sorted by action type
func (s *TimingSink) Stats() []ActionTiming {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]string, 0, len(s.durations))
	for t := range s.durations {
		types = append(types, t)
	}
	for t := range s.errors {
		if _, ok := s.durations[t]; !ok {
			types = append(types, t)
		}
	}
	sort.Strings(types)

	out := make([]ActionTiming, len(types))
	for i, t := range types {
		out[i] = ActionTiming{
			ActionType: t,
			Durations:  util.NewStats(s.durations[t]),
			Errors:     s.errors[t],
		}
	}
	return out
}

func (s *TimingSink) OnDispatchStart(reactor.DispatchEvent) {}

func (s *TimingSink) OnStoreHandled(reactor.StoreEvent) {}

func (s *TimingSink) OnDispatchEnd(e reactor.DispatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations[e.ActionType] = append(s.durations[e.ActionType], float64(e.Duration.Microseconds())/1000)
}

func (s *TimingSink) OnDispatchError(e reactor.DispatchEvent, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[e.ActionType]++
}

func (s *TimingSink) OnNotify(reactor.NotifyEvent) {}

func (s *TimingSink) OnRegister(reactor.RegisterEvent) {}
