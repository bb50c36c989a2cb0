package observer

import (
	"github.com/ValentinKolb/dFlux/lib/evaluator"
	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("observer")

// Handler receives the new value of an observed getter
type Handler func(value any)

// entry is one subscription
type entry struct {
	getter    *getter.Getter
	handler   Handler
	unwatched bool
}

// ChangeObserver tracks (getter, handler) subscriptions and, given a new
// state, invokes the handlers whose getter value changed since the previous
// state.
//
// Thread-safety: a ChangeObserver is not safe for concurrent use; it is
// driven by its reactor.
type ChangeObserver struct {
	evaluator  *evaluator.Evaluator
	prevState  *immutable.Map
	prevValues *immutable.Map // getter -> last observed value
	observers  []*entry
}

// New creates a change observer with initial as the baseline state
func New(initial *immutable.Map, ev *evaluator.Evaluator) *ChangeObserver {
	return &ChangeObserver{
		evaluator:  ev,
		prevState:  initial,
		prevValues: immutable.EmptyMap(),
	}
}

// OnChange registers handler for changes of dep (a key path or a getter) and
// returns the function that removes the subscription again. The returned
// function may be called at any time, also from inside a handler, and more
// than once.
func (o *ChangeObserver) OnChange(dep getter.Dependency, handler Handler) (func(), error) {
	g := getter.From(dep)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fault.New(fault.CodeInvalidGetter, "observe requires a handler")
	}

	e := &entry{getter: g, handler: handler}
	o.observers = append(o.observers, e)

	return func() {
		for i, candidate := range o.observers {
			if candidate == e {
				e.unwatched = true
				o.observers = append(o.observers[:i:i], o.observers[i+1:]...)
				return
			}
		}
	}, nil
}

// Len returns the number of active subscriptions
func (o *ChangeObserver) Len() int {
	return len(o.observers)
}

// NotifyObservers evaluates every observed getter against newState and calls
// the handlers whose value differs (immutable.Is) from the previous state.
// Handlers fire in subscription order. newState becomes the new baseline.
//
// An evaluation error aborts the pass and is returned; the baseline is left
// unchanged in that case.
func (o *ChangeObserver) NotifyObservers(newState *immutable.Map) error {
	if len(o.observers) > 0 {
		// handlers may unwatch (or watch) while we iterate
		snapshot := append([]*entry(nil), o.observers...)
		current := immutable.EmptyMap()
		fired := 0

		for _, e := range snapshot {
			if e.unwatched {
				continue
			}

			prev, ok := o.prevValues.Get(e.getter)
			if !ok {
				v, err := o.evaluator.Evaluate(o.prevState, e.getter)
				if err != nil {
					return err
				}
				prev = v
				o.prevValues = o.prevValues.Set(e.getter, prev)
			}

			curr, err := o.evaluator.Evaluate(newState, e.getter)
			if err != nil {
				return err
			}

			if !immutable.Is(prev, curr) {
				e.handler(curr)
				current = current.Set(e.getter, curr)
				fired++
			}
		}

		o.prevValues = current
		log.Debugf("notified %d of %d observers", fired, len(snapshot))
	}

	o.prevState = newState
	return nil
}

// Reset drops all subscriptions and cached values and re-baselines to state
func (o *ChangeObserver) Reset(state *immutable.Map) {
	for _, e := range o.observers {
		e.unwatched = true
	}
	o.observers = nil
	o.prevValues = immutable.EmptyMap()
	o.prevState = state
}
