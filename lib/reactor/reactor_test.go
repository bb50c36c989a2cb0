package reactor

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func counterStore() Store {
	return NewStore(immutable.MapOf("count", 0), func(h *Handlers) {
		h.On("INCREMENT", func(state, _ any) (any, error) {
			m := state.(*immutable.Map)
			return m.Set("count", m.GetOr("count", 0).(int)+1), nil
		})
		h.On("ADD", func(state, payload any) (any, error) {
			m := state.(*immutable.Map)
			return m.Set("count", m.GetOr("count", 0).(int)+payload.(int)), nil
		})
	})
}

func newCounterReactor(t *testing.T, config *Config) *Reactor {
	t.Helper()
	r := New(config)
	if err := r.RegisterStore("store1", counterStore()); err != nil {
		t.Fatalf("RegisterStore failed: %v", err)
	}
	return r
}

func mustDispatch(t *testing.T, r *Reactor, actionType string, payload any) {
	t.Helper()
	if err := r.Dispatch(actionType, payload); err != nil {
		t.Fatalf("Dispatch(%s) failed: %v", actionType, err)
	}
}

// recordingSink keeps the names of all events
type recordingSink struct {
	events []string
}

func (s *recordingSink) OnDispatchStart(e DispatchEvent) {
	s.events = append(s.events, "start:"+e.ActionType)
}
func (s *recordingSink) OnStoreHandled(e StoreEvent) {
	s.events = append(s.events, fmt.Sprintf("store:%s:%v", e.StoreID, e.Changed))
}
func (s *recordingSink) OnDispatchEnd(e DispatchEvent) {
	s.events = append(s.events, fmt.Sprintf("end:%s:%v", e.ActionType, e.Changed))
}
func (s *recordingSink) OnDispatchError(e DispatchEvent, _ error) {
	s.events = append(s.events, "error:"+e.ActionType)
}
func (s *recordingSink) OnNotify(e NotifyEvent) {
	s.events = append(s.events, "notify:"+string(e.Cause))
}
func (s *recordingSink) OnRegister(e RegisterEvent) {
	s.events = append(s.events, fmt.Sprintf("register:%s:%v", e.StoreID, e.Replaced))
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

func TestCounterEndToEnd(t *testing.T) {
	r := newCounterReactor(t, nil)
	path := getter.NewKeyPath("store1", "count")

	var seen []any
	if _, err := r.Observe(path, func(v any) { seen = append(seen, v) }); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		mustDispatch(t, r, "INCREMENT", nil)
	}

	v, err := r.Evaluate(path)
	if err != nil || v != 3 {
		t.Errorf("Evaluate = %v, %v", v, err)
	}
	if !reflect.DeepEqual(seen, []any{1, 2, 3}) {
		t.Errorf("observer received %v, want [1 2 3]", seen)
	}
	if r.DispatchCount() != 3 {
		t.Errorf("DispatchCount = %d", r.DispatchCount())
	}
}

func TestUnchangedDispatchDoesNotNotify(t *testing.T) {
	sink := &recordingSink{}
	r := newCounterReactor(t, &Config{Sink: sink})
	sink.events = nil

	mustDispatch(t, r, "UNKNOWN", nil)
	want := []string{"start:UNKNOWN", "store:store1:false", "end:UNKNOWN:false"}
	if !reflect.DeepEqual(sink.events, want) {
		t.Errorf("events = %v, want %v", sink.events, want)
	}
}

func TestDispatchEvents(t *testing.T) {
	sink := &recordingSink{}
	r := newCounterReactor(t, &Config{Sink: sink})
	mustDispatch(t, r, "INCREMENT", nil)

	want := []string{
		"register:store1:false", "notify:register",
		"start:INCREMENT", "store:store1:true", "notify:dispatch", "end:INCREMENT:true",
	}
	if !reflect.DeepEqual(sink.events, want) {
		t.Errorf("events = %v, want %v", sink.events, want)
	}
}

func TestBatchCoalescesNotifications(t *testing.T) {
	r := newCounterReactor(t, nil)

	var seen []any
	_, _ = r.Observe(getter.NewKeyPath("store1"), func(v any) { seen = append(seen, v) })

	err := r.Batch(func() error {
		for _, n := range []int{1, 2, 3} {
			if err := r.Dispatch("ADD", n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(seen) != 1 {
		t.Fatalf("observer called %d times, want 1", len(seen))
	}
	if !immutable.Is(seen[0], immutable.MapOf("count", 6)) {
		t.Errorf("observer received %v", seen[0])
	}
}

func TestNestedBatchNotifiesOnce(t *testing.T) {
	r := newCounterReactor(t, nil)
	calls := 0
	_, _ = r.Observe(getter.NewKeyPath("store1", "count"), func(any) { calls++ })

	_ = r.Batch(func() error {
		_ = r.Dispatch("INCREMENT", nil)
		_ = r.Batch(func() error {
			return r.Dispatch("INCREMENT", nil)
		})
		if calls != 0 {
			t.Errorf("inner batch notified early")
		}
		return r.Dispatch("INCREMENT", nil)
	})
	if calls != 1 {
		t.Errorf("observer called %d times, want 1", calls)
	}
}

func TestBatchErrorStillNotifies(t *testing.T) {
	r := newCounterReactor(t, nil)
	calls := 0
	_, _ = r.Observe(getter.NewKeyPath("store1", "count"), func(any) { calls++ })

	boom := errors.New("boom")
	err := r.Batch(func() error {
		_ = r.Dispatch("INCREMENT", nil)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Batch returned %v", err)
	}
	if calls != 1 {
		t.Errorf("applied dispatch not notified (calls=%d)", calls)
	}
}

// --------------------------------------------------------------------------
// Reentrancy & Errors
// --------------------------------------------------------------------------

func TestReentrantDispatchFromStore(t *testing.T) {
	r := New(nil)
	var innerErr error
	store := NewStore(immutable.MapOf("n", 0), func(h *Handlers) {
		h.On("OUTER", func(state, _ any) (any, error) {
			innerErr = r.Dispatch("INNER", nil)
			return state.(*immutable.Map).Set("n", 1), innerErr
		})
		h.On("INNER", func(state, _ any) (any, error) {
			return state.(*immutable.Map).Set("n", 99), nil
		})
	})
	if err := r.RegisterStore("s", store); err != nil {
		t.Fatal(err)
	}

	err := r.Dispatch("OUTER", nil)
	if !errors.Is(innerErr, fault.ErrReentrancy) {
		t.Errorf("inner dispatch returned %v", innerErr)
	}
	if !errors.Is(err, fault.ErrReentrancy) {
		t.Errorf("outer dispatch returned %v", err)
	}
	if v, _ := r.Evaluate(getter.NewKeyPath("s", "n")); v != 0 {
		t.Errorf("state changed to %v", v)
	}

	// the reactor is not left locked
	if err := r.Dispatch("INNER", nil); err != nil {
		t.Errorf("dispatch after failure: %v", err)
	}
}

func TestDispatchFromObserverFails(t *testing.T) {
	r := newCounterReactor(t, nil)
	var innerErr error
	_, _ = r.Observe(getter.NewKeyPath("store1", "count"), func(any) {
		innerErr = r.Dispatch("INCREMENT", nil)
	})

	mustDispatch(t, r, "INCREMENT", nil)
	if !errors.Is(innerErr, fault.ErrReentrancy) {
		t.Errorf("dispatch from observer returned %v", innerErr)
	}
	if v, _ := r.Evaluate(getter.NewKeyPath("store1", "count")); v != 1 {
		t.Errorf("count = %v, want 1", v)
	}
}

func TestStoreErrorClearsDispatchFlag(t *testing.T) {
	r := New(nil)
	boom := errors.New("boom")
	_ = r.RegisterStore("s", NewStore(0, func(h *Handlers) {
		h.On("FAIL", func(any, any) (any, error) { return nil, boom })
		h.On("OK", func(state, _ any) (any, error) { return state.(int) + 1, nil })
	}))

	if err := r.Dispatch("FAIL", nil); !errors.Is(err, boom) {
		t.Errorf("Dispatch returned %v", err)
	}
	mustDispatch(t, r, "OK", nil)
	if v, _ := r.Evaluate(getter.NewKeyPath("s")); v != 1 {
		t.Errorf("state = %v", v)
	}
}

func TestStorePanicClearsDispatchFlag(t *testing.T) {
	r := New(nil)
	_ = r.RegisterStore("s", NewStore(0, func(h *Handlers) {
		h.On("PANIC", func(any, any) (any, error) { panic("handler panic") })
	}))

	func() {
		defer func() { _ = recover() }()
		_ = r.Dispatch("PANIC", nil)
	}()
	if err := r.Dispatch("NOOP", nil); err != nil {
		t.Errorf("reactor locked after panic: %v", err)
	}
}

func TestDebugObserveUnsetKeyPath(t *testing.T) {
	r := New(&Config{Debug: true})
	err := r.RegisterStore("user", NewStore(immutable.EmptyMap(), func(h *Handlers) {
		h.On("SET_NAME", func(state, payload any) (any, error) {
			return state.(*immutable.Map).Set("name", payload), nil
		})
	}))
	if err != nil {
		t.Fatal(err)
	}

	namePath := getter.NewKeyPath("user", "name")
	var names []any
	if _, err := r.Observe(namePath, func(v any) { names = append(names, v) }); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	mustDispatch(t, r, "SET_NAME", "ann")
	mustDispatch(t, r, "SET_NAME", "bob")

	if !reflect.DeepEqual(names, []any{"ann", "bob"}) {
		t.Errorf("notifications = %v, want [ann bob]", names)
	}
	if v, err := r.Evaluate(getter.NewKeyPath("user", "age")); err != nil || v != nil {
		t.Errorf("Evaluate(unset path) = %v, %v", v, err)
	}
}

func TestDebugInvariants(t *testing.T) {
	t.Run("nil reducer result", func(t *testing.T) {
		r := New(&Config{Debug: true})
		_ = r.RegisterStore("s", NewStore(immutable.EmptyMap(), func(h *Handlers) {
			h.On("FORGET", func(any, any) (any, error) { return nil, nil })
		}))
		if err := r.Dispatch("FORGET", nil); !errors.Is(err, fault.ErrInvariant) {
			t.Errorf("expected invariant error, got %v", err)
		}
	})

	t.Run("mutable initial state", func(t *testing.T) {
		r := New(&Config{Debug: true})
		err := r.RegisterStore("s", NewStore(map[string]any{"a": 1}, nil))
		if !errors.Is(err, fault.ErrInvariant) {
			t.Errorf("expected invariant error, got %v", err)
		}
	})

	t.Run("mutable initial state outside debug", func(t *testing.T) {
		r := New(nil)
		if err := r.RegisterStore("s", NewStore(map[string]any{"a": 1}, nil)); err != nil {
			t.Errorf("unexpected error %v", err)
		}
	})
}

// --------------------------------------------------------------------------
// Registration
// --------------------------------------------------------------------------

func TestRegisterStoresOrder(t *testing.T) {
	r := New(nil)
	var order []string
	mk := func(id string) Store {
		return NewStore(0, func(h *Handlers) {
			h.On("PING", func(state, _ any) (any, error) {
				order = append(order, id)
				return state, nil
			})
		})
	}
	if err := r.RegisterStores(map[string]Store{"c": mk("c"), "a": mk("a"), "b": mk("b")}); err != nil {
		t.Fatal(err)
	}
	_ = r.RegisterStore("0-late", mk("0-late"))

	mustDispatch(t, r, "PING", nil)
	if !reflect.DeepEqual(order, []string{"a", "b", "c", "0-late"}) {
		t.Errorf("stores handled in order %v", order)
	}
	if !reflect.DeepEqual(r.StoreIDs(), []string{"a", "b", "c", "0-late"}) {
		t.Errorf("StoreIDs = %v", r.StoreIDs())
	}
}

func TestDuplicateRegistrationWarnsAndReplaces(t *testing.T) {
	sink := &recordingSink{}
	r := newCounterReactor(t, &Config{Sink: sink})
	mustDispatch(t, r, "INCREMENT", nil)

	if err := r.RegisterStore("store1", NewStore(immutable.MapOf("count", 100), nil)); err != nil {
		t.Fatalf("duplicate registration must not fail: %v", err)
	}
	if len(r.StoreIDs()) != 1 {
		t.Errorf("StoreIDs = %v", r.StoreIDs())
	}
	if v, _ := r.Evaluate(getter.NewKeyPath("store1", "count")); v != 100 {
		t.Errorf("count = %v, want the new initial state", v)
	}
	if sink.events[len(sink.events)-2] != "register:store1:true" {
		t.Errorf("events = %v", sink.events)
	}
}

func TestRegisterNotifiesObservers(t *testing.T) {
	r := New(nil)
	var seen []any
	_, _ = r.Observe(getter.NewKeyPath("late", "count"), func(v any) { seen = append(seen, v) })
	_ = r.RegisterStore("late", counterStore())
	if !reflect.DeepEqual(seen, []any{0}) {
		t.Errorf("observer received %v", seen)
	}
}

// --------------------------------------------------------------------------
// Reset & Serialization
// --------------------------------------------------------------------------

// listStore serializes its vector itself and refuses to serialize when empty
type listStore struct {
	Handlers
}

func (s *listStore) Initialize() {
	s.On("PUSH", func(state, payload any) (any, error) {
		return state.(*immutable.Vector).Push(payload), nil
	})
}

func (s *listStore) GetInitialState() any { return immutable.EmptyVector() }

func (s *listStore) Serialize(state any) (any, error) {
	v := state.(*immutable.Vector)
	if v.Len() == 0 {
		return nil, nil
	}
	return immutable.ToNative(v), nil
}

func (s *listStore) Deserialize(data any) (any, error) {
	return immutable.FromNative(data), nil
}

func (s *listStore) HandleReset(state any) (any, error) {
	// keep the first element
	v := state.(*immutable.Vector)
	if first, ok := v.Get(0); ok {
		return immutable.VectorOf(first), nil
	}
	return immutable.EmptyVector(), nil
}

func TestSerializeLoadStateRoundTrip(t *testing.T) {
	build := func() *Reactor {
		r := newCounterReactor(t, nil)
		if err := r.RegisterStore("list", &listStore{}); err != nil {
			t.Fatal(err)
		}
		return r
	}

	r1 := build()
	data, err := r1.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := data["list"]; ok {
		t.Error("a store serializing to nil must be omitted")
	}

	mustDispatch(t, r1, "ADD", 5)
	mustDispatch(t, r1, "PUSH", "x")
	mustDispatch(t, r1, "PUSH", "y")
	if data, err = r1.Serialize(); err != nil {
		t.Fatal(err)
	}

	r2 := build()
	var seen []any
	_, _ = r2.Observe(getter.NewKeyPath("list"), func(v any) { seen = append(seen, v) })
	if err := r2.LoadState(data); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 {
		t.Errorf("LoadState notified %d times", len(seen))
	}

	for _, path := range []getter.KeyPath{
		getter.NewKeyPath("store1"),
		getter.NewKeyPath("store1", "count"),
		getter.NewKeyPath("list"),
	} {
		v1, _ := r1.EvaluateToNative(path)
		v2, _ := r2.EvaluateToNative(path)
		if !immutable.Is(immutable.FromNative(v1), immutable.FromNative(v2)) {
			t.Errorf("%s: %v != %v", path, v1, v2)
		}
	}
}

func TestLoadStateSkipsUnknownStores(t *testing.T) {
	r := newCounterReactor(t, nil)
	if err := r.LoadState(map[string]any{"nope": 1, "store1": map[string]any{"count": 7}}); err != nil {
		t.Fatal(err)
	}
	if r.State().Has("nope") {
		t.Error("unknown store state was loaded")
	}
	if v, _ := r.Evaluate(getter.NewKeyPath("store1", "count")); v != 7 {
		t.Errorf("count = %v", v)
	}
}

func TestReset(t *testing.T) {
	r := newCounterReactor(t, nil)
	_ = r.RegisterStore("list", &listStore{})
	calls := 0
	_, _ = r.Observe(getter.NewKeyPath("store1", "count"), func(any) { calls++ })

	mustDispatch(t, r, "ADD", 3)
	mustDispatch(t, r, "PUSH", "a")
	mustDispatch(t, r, "PUSH", "b")
	calls = 0

	if err := r.Reset(); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Evaluate(getter.NewKeyPath("store1", "count")); v != 0 {
		t.Errorf("count after reset = %v", v)
	}
	if v, _ := r.Evaluate(getter.NewKeyPath("list")); !immutable.Is(v, immutable.VectorOf("a")) {
		t.Errorf("list after reset = %v", v)
	}
	if r.Stats().CacheSize != 0 {
		t.Errorf("evaluator cache not cleared")
	}

	mustDispatch(t, r, "INCREMENT", nil)
	if calls != 0 {
		t.Errorf("observers must be dropped on reset, got %d calls", calls)
	}
}

// --------------------------------------------------------------------------
// Getter Scenarios
// --------------------------------------------------------------------------

// TestYearGroupAfterUnrelatedDispatch replays a scenario where an unrelated
// dispatch (LOADED) happens between two changes of a derived value. The
// derived value is reused across the unrelated change and the later change
// still reaches the observer.
func TestYearGroupAfterUnrelatedDispatch(t *testing.T) {
	r := New(nil)
	students := NewStore(immutable.VectorOf(
		immutable.MapOf("name", "ann", "year", 1),
		immutable.MapOf("name", "bob", "year", 2),
		immutable.MapOf("name", "cid", "year", 2),
	), func(h *Handlers) {
		h.On("ADD_STUDENT", func(state, payload any) (any, error) {
			return state.(*immutable.Vector).Push(payload), nil
		})
	})
	ui := NewStore(immutable.MapOf("year", 1, "loaded", false), func(h *Handlers) {
		h.On("SELECT_YEAR", func(state, payload any) (any, error) {
			return state.(*immutable.Map).Set("year", payload), nil
		})
		h.On("LOADED", func(state, _ any) (any, error) {
			return state.(*immutable.Map).Set("loaded", true), nil
		})
	})
	if err := r.RegisterStores(map[string]Store{"students": students, "ui": ui}); err != nil {
		t.Fatal(err)
	}

	computes := 0
	yearGroup := getter.Named("yearGroup", func(args ...any) (any, error) {
		computes++
		year := args[1]
		return immutable.EmptyVector().WithMutations(func(b *immutable.VectorBuilder) {
			args[0].(*immutable.Vector).Range(func(_ int, s any) bool {
				if y, _ := s.(*immutable.Map).Get("year"); immutable.Is(y, year) {
					b.Push(s.(*immutable.Map).GetOr("name", ""))
				}
				return true
			})
		}), nil
	}, getter.NewKeyPath("students"), getter.NewKeyPath("ui", "year"))

	var groups []string
	_, err := r.Observe(yearGroup, func(v any) { groups = append(groups, v.(*immutable.Vector).String()) })
	if err != nil {
		t.Fatal(err)
	}

	mustDispatch(t, r, "SELECT_YEAR", 2)
	mustDispatch(t, r, "LOADED", nil)
	mustDispatch(t, r, "ADD_STUDENT", immutable.MapOf("name", "dan", "year", 2))
	mustDispatch(t, r, "SELECT_YEAR", 1)

	want := []string{"Vector[bob, cid]", "Vector[bob, cid, dan]", "Vector[ann]"}
	if !reflect.DeepEqual(groups, want) {
		t.Errorf("yearGroup notifications = %v, want %v", groups, want)
	}
	if r.Stats().Reuses == 0 {
		t.Error("the unrelated LOADED dispatch should have reused the memoized value")
	}
	if computes != 4 {
		t.Errorf("yearGroup computed %d times, want 4", computes)
	}
}

func TestEvaluateReentrancyThroughReactor(t *testing.T) {
	r := newCounterReactor(t, nil)
	var innerErr error
	g := getter.New(func(args ...any) (any, error) {
		_, innerErr = r.Evaluate(getter.NewKeyPath("store1"))
		return args[0], nil
	}, getter.NewKeyPath("store1", "count"))

	if _, err := r.Evaluate(g); !errors.Is(err, fault.ErrReentrancy) {
		t.Errorf("Evaluate returned %v", err)
	}
	if !errors.Is(innerErr, fault.ErrReentrancy) {
		t.Errorf("inner Evaluate returned %v", innerErr)
	}
}
