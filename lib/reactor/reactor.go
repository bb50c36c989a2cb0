package reactor

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dFlux/lib/cache"
	"github.com/ValentinKolb/dFlux/lib/evaluator"
	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
	"github.com/ValentinKolb/dFlux/lib/observer"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("reactor")

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrDispatchInProgress is returned by Dispatch when called during another dispatch
	ErrDispatchInProgress = fault.New(fault.CodeReentrancy, "Dispatch may not be called while a dispatch is in progress")
)

// --------------------------------------------------------------------------
// Reactor
// --------------------------------------------------------------------------

type registeredStore struct {
	id    string
	store Store
}

// Reactor owns the application state: an immutable map from store id to
// the state of that store. State only changes by dispatching actions, which
// are folded through every store in registration order; observers are
// notified synchronously afterwards.
//
// Thread-safety: a Reactor is not safe for concurrent use. All calls must be
// serialized by the caller (typically by owning the reactor on one
// goroutine). Values returned by State and Evaluate are immutable and may be
// shared freely.
type Reactor struct {
	config    *Config
	sink      DebugSink
	state     *immutable.Map
	stores    []registeredStore
	index     map[string]int
	evaluator *evaluator.Evaluator
	observer  *observer.ChangeObserver

	isDispatching      bool
	batchDepth         int
	batchDispatchCount int
	dispatchIndex      atomic.Uint64
}

// New creates a reactor without stores
func New(config *Config) *Reactor {
	config = config.withDefaults()

	state := immutable.EmptyMap()
	ev := evaluator.New(&evaluator.Config{
		Debug:    config.Debug,
		Cache:    cache.NewLRUCache(config.CacheLimit, config.EvictCount),
		Registry: config.MetricsRegistry,
	})

	return &Reactor{
		config:    config,
		sink:      config.Sink,
		state:     state,
		index:     make(map[string]int),
		evaluator: ev,
		observer:  observer.New(state, ev),
	}
}

// incAndGetIndex returns the next dispatch sequence number
func (r *Reactor) incAndGetIndex() uint64 {
	return r.dispatchIndex.Add(1)
}

// --------------------------------------------------------------------------
// Dispatching
// --------------------------------------------------------------------------

// Dispatch folds an action through all stores. Outside of Batch, observers
// are notified before Dispatch returns if the state changed.
//
// Dispatch fails with ErrDispatchInProgress when called from a store handler
// or an observer of another dispatch; no state is changed in that case. An
// error returned by a store aborts the dispatch without changing the state
// and is returned (wrapped) to the caller.
func (r *Reactor) Dispatch(actionType string, payload any) error {
	if r.isDispatching {
		return ErrDispatchInProgress
	}
	r.isDispatching = true
	defer func() { r.isDispatching = false }()

	event := DispatchEvent{
		ID:         r.incAndGetIndex(),
		ActionType: actionType,
		Payload:    payload,
		Batched:    r.batchDepth > 0,
	}
	start := time.Now()
	r.sink.OnDispatchStart(event)

	prevState := r.state
	nextState, err := r.handleAction(event.ID, prevState, actionType, payload)
	if err != nil {
		event.Duration = time.Since(start)
		r.sink.OnDispatchError(event, err)
		return err
	}
	r.state = nextState
	event.Changed = nextState != prevState

	if r.batchDepth > 0 {
		r.batchDispatchCount++
	} else if event.Changed {
		if err := r.notify(CauseDispatch); err != nil {
			event.Duration = time.Since(start)
			r.sink.OnDispatchError(event, err)
			return err
		}
	}

	event.Duration = time.Since(start)
	r.sink.OnDispatchEnd(event)
	return nil
}

// Batch runs fn and defers all observer notifications of the dispatches it
// makes until the outermost Batch returns. Then, if anything was dispatched,
// exactly one notification pass covers the cumulative change. Dispatches
// made before fn failed stay applied and are notified as well.
func (r *Reactor) Batch(fn func() error) (err error) {
	r.batchDepth++
	completed := false
	defer func() {
		r.batchDepth--
		if !completed {
			// fn panicked: the next notification pass picks up the change
			return
		}
		if r.batchDepth == 0 && r.batchDispatchCount > 0 {
			r.batchDispatchCount = 0
			if nerr := r.notifyGuarded(CauseBatch); nerr != nil && err == nil {
				err = nerr
			}
		}
	}()

	err = fn()
	completed = true
	return err
}

// handleAction folds one action through every store and returns the new state
func (r *Reactor) handleAction(dispatchID uint64, state *immutable.Map, actionType string, payload any) (*immutable.Map, error) {
	var handleErr error

	next := state.WithMutations(func(b *immutable.MapBuilder) {
		for _, rs := range r.stores {
			current, _ := state.Get(rs.id)

			newState, err := rs.store.Handle(current, actionType, payload)
			if err != nil {
				handleErr = fmt.Errorf("store %q handling %q: %w", rs.id, actionType, err)
				return
			}
			if err := r.checkStoreState(rs.id, "handler for "+actionType, newState, true); err != nil {
				handleErr = err
				return
			}

			b.Set(rs.id, newState)
			r.sink.OnStoreHandled(StoreEvent{
				DispatchID: dispatchID,
				StoreID:    rs.id,
				ActionType: actionType,
				Changed:    !sameState(current, newState),
			})
		}
	})

	if handleErr != nil {
		return state, handleErr
	}
	return next, nil
}

// checkStoreState enforces the debug mode invariants on a store state
func (r *Reactor) checkStoreState(storeID, origin string, state any, requireValue bool) error {
	if !r.config.Debug {
		return nil
	}
	if requireValue && state == nil {
		return fault.Newf(fault.CodeInvariant,
			"store %q: %s must return a value, did you forget a return statement", storeID, origin)
	}
	if !immutable.IsImmutable(state) {
		return fault.Newf(fault.CodeInvariant,
			"store %q: %s must return an immutable value (got %T)", storeID, origin, state)
	}
	return nil
}

// sameState reports reference identity of two store states
func sameState(a, b any) bool {
	if immutable.IsCollection(a) || immutable.IsCollection(b) {
		return a == b
	}
	return immutable.Is(a, b)
}

// notify runs one change observer pass
func (r *Reactor) notify(cause NotifyCause) error {
	start := time.Now()
	observers := r.observer.Len()
	err := r.observer.NotifyObservers(r.state)
	r.sink.OnNotify(NotifyEvent{Cause: cause, Observers: observers, Duration: time.Since(start)})
	return err
}

// notifyGuarded runs a notification pass outside of Dispatch, forbidding
// observers from dispatching just like during a dispatch
func (r *Reactor) notifyGuarded(cause NotifyCause) error {
	if r.isDispatching {
		return r.notify(cause)
	}
	r.isDispatching = true
	defer func() { r.isDispatching = false }()
	return r.notify(cause)
}

// --------------------------------------------------------------------------
// Store Registration
// --------------------------------------------------------------------------

// RegisterStores registers all stores (in order of their ids) and runs one
// notification pass afterwards. Registering an id twice logs a warning and
// replaces the earlier store.
func (r *Reactor) RegisterStores(stores map[string]Store) error {
	ids := make([]string, 0, len(stores))
	for id := range stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := r.registerStore(id, stores[id]); err != nil {
			return err
		}
	}
	return r.notifyGuarded(CauseRegister)
}

// RegisterStore registers a single store and runs one notification pass
func (r *Reactor) RegisterStore(id string, store Store) error {
	if err := r.registerStore(id, store); err != nil {
		return err
	}
	return r.notifyGuarded(CauseRegister)
}

func (r *Reactor) registerStore(id string, store Store) error {
	if store == nil {
		return fault.Newf(fault.CodeInvariant, "store %q is nil", id)
	}

	if init, ok := store.(Initializer); ok {
		init.Initialize()
	}

	initial := store.GetInitialState()
	if err := r.checkStoreState(id, "getInitialState()", initial, false); err != nil {
		return err
	}

	_, replaced := r.index[id]
	if replaced {
		log.Warningf("Store already defined for id = %s", id)
		r.stores[r.index[id]].store = store
	} else {
		r.index[id] = len(r.stores)
		r.stores = append(r.stores, registeredStore{id: id, store: store})
	}

	r.state = r.state.Set(id, initial)
	r.sink.OnRegister(RegisterEvent{StoreID: id, Replaced: replaced})
	return nil
}

// StoreIDs returns the ids of all registered stores in registration order
func (r *Reactor) StoreIDs() []string {
	ids := make([]string, len(r.stores))
	for i, rs := range r.stores {
		ids[i] = rs.id
	}
	return ids
}

// --------------------------------------------------------------------------
// Reading State
// --------------------------------------------------------------------------

// State returns the current state (store id -> store state)
func (r *Reactor) State() *immutable.Map {
	return r.state
}

// Evaluate resolves a key path or getter against the current state
func (r *Reactor) Evaluate(dep getter.Dependency) (any, error) {
	return r.evaluator.Evaluate(r.state, dep)
}

// EvaluateToNative is Evaluate with the result converted to plain Go values
func (r *Reactor) EvaluateToNative(dep getter.Dependency) (any, error) {
	return r.evaluator.EvaluateToNative(r.state, dep)
}

// Observe calls handler with the new value of dep whenever it changes and
// returns the function that stops the observation.
func (r *Reactor) Observe(dep getter.Dependency, handler func(value any)) (func(), error) {
	return r.observer.OnChange(dep, handler)
}

// Stats returns the evaluator counters
func (r *Reactor) Stats() evaluator.StatsSnapshot {
	return r.evaluator.Stats()
}

// DispatchCount returns the number of dispatches so far
func (r *Reactor) DispatchCount() uint64 {
	return r.dispatchIndex.Load()
}

// Options returns the pass-through UI binding options of the configuration
func (r *Reactor) Options() map[string]any {
	return r.config.Options
}

// --------------------------------------------------------------------------
// Reset & Serialization
// --------------------------------------------------------------------------

// Reset recomputes every store's state (HandleReset or GetInitialState),
// drops all memoized values and removes all observers.
func (r *Reactor) Reset() error {
	var resetErr error
	next := immutable.EmptyMap().WithMutations(func(b *immutable.MapBuilder) {
		for _, rs := range r.stores {
			current, _ := r.state.Get(rs.id)

			var resetState any
			if resetter, ok := rs.store.(Resetter); ok {
				s, err := resetter.HandleReset(current)
				if err != nil {
					resetErr = fmt.Errorf("store %q handleReset(): %w", rs.id, err)
					return
				}
				resetState = s
			} else {
				resetState = rs.store.GetInitialState()
			}

			if err := r.checkStoreState(rs.id, "handleReset()", resetState, true); err != nil {
				resetErr = err
				return
			}
			b.Set(rs.id, resetState)
		}
	})
	if resetErr != nil {
		return resetErr
	}

	r.state = next
	r.evaluator.Reset()
	r.observer.Reset(next)
	log.Infof("reactor reset (%d stores)", len(r.stores))
	return nil
}

// Serialize returns the serialized state of every store. Stores serializing
// to nil are omitted.
func (r *Reactor) Serialize() (map[string]any, error) {
	out := make(map[string]any, len(r.stores))
	for _, rs := range r.stores {
		state, _ := r.state.Get(rs.id)

		var data any
		if s, ok := rs.store.(StateSerializer); ok {
			d, err := s.Serialize(state)
			if err != nil {
				return nil, fmt.Errorf("store %q serialize(): %w", rs.id, err)
			}
			data = d
		} else {
			data = immutable.ToNative(state)
		}

		if data != nil {
			out[rs.id] = data
		}
	}
	return out, nil
}

// LoadState deserializes the given store states, merges them into the
// current state and runs one notification pass. Ids without a registered
// store are skipped with a warning.
func (r *Reactor) LoadState(data map[string]any) error {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var loadErr error
	next := r.state.WithMutations(func(b *immutable.MapBuilder) {
		for _, id := range ids {
			pos, ok := r.index[id]
			if !ok {
				log.Warningf("loadState: no store registered for id = %s", id)
				continue
			}
			store := r.stores[pos].store

			var state any
			if s, ok := store.(StateSerializer); ok {
				d, err := s.Deserialize(data[id])
				if err != nil {
					loadErr = fmt.Errorf("store %q deserialize(): %w", id, err)
					return
				}
				state = d
			} else {
				state = immutable.FromNative(data[id])
			}
			if state == nil {
				continue
			}

			if err := r.checkStoreState(id, "deserialize()", state, false); err != nil {
				loadErr = err
				return
			}
			b.Set(id, state)
		}
	})
	if loadErr != nil {
		return loadErr
	}

	r.state = next
	return r.notifyGuarded(CauseLoad)
}
