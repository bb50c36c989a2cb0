package evaluator

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dFlux/lib/cache"
	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
	"github.com/rcrowley/go-metrics"
)

// countingGetter returns a getter over path that records how often it computes
func countingGetter(calls *int, path getter.KeyPath) *getter.Getter {
	return getter.New(func(args ...any) (any, error) {
		*calls++
		return args[0], nil
	}, path)
}

func TestEvaluateKeyPath(t *testing.T) {
	e := New(nil)
	state := immutable.MapOf("store", immutable.MapOf("count", 3))

	v, err := e.Evaluate(state, getter.NewKeyPath("store", "count"))
	if err != nil || v != 3 {
		t.Errorf("Evaluate = %v, %v", v, err)
	}
	v, err = e.Evaluate(state, getter.NewKeyPath("store", "missing"))
	if err != nil || v != nil {
		t.Errorf("missing path = %v, %v", v, err)
	}
}

func TestEvaluateMemoization(t *testing.T) {
	e := New(nil)
	calls := 0
	g := countingGetter(&calls, getter.NewKeyPath("a"))

	s1 := immutable.MapOf("a", 1, "b", 1)
	for i := 0; i < 2; i++ {
		v, err := e.Evaluate(s1, g)
		if err != nil || v != 1 {
			t.Fatalf("Evaluate = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("compute ran %d times for the same state, want 1", calls)
	}

	// unrelated change: the stale entry is reused
	s2 := s1.Set("b", 2)
	if v, _ := e.Evaluate(s2, g); v != 1 {
		t.Errorf("Evaluate(s2) = %v", v)
	}
	if calls != 1 {
		t.Errorf("unrelated change recomputed the getter (%d calls)", calls)
	}

	// related change: recompute
	s3 := s2.Set("a", 5)
	if v, _ := e.Evaluate(s3, g); v != 5 {
		t.Errorf("Evaluate(s3) = %v", v)
	}
	if calls != 2 {
		t.Errorf("dependency change did not recompute (%d calls)", calls)
	}

	stats := e.Stats()
	if stats.Hits != 1 || stats.Reuses != 1 || stats.Computes != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestEvaluateNestedGetters(t *testing.T) {
	e := New(nil)
	innerCalls, outerCalls := 0, 0

	inner := getter.New(func(args ...any) (any, error) {
		innerCalls++
		return args[0].(int) + args[1].(int), nil
	}, getter.NewKeyPath("x"), getter.NewKeyPath("y"))
	outer := getter.New(func(args ...any) (any, error) {
		outerCalls++
		return args[0].(int) * 10, nil
	}, inner)

	state := immutable.MapOf("x", 1, "y", 2)
	if v, err := e.Evaluate(state, outer); err != nil || v != 30 {
		t.Fatalf("Evaluate = %v, %v", v, err)
	}

	// x and y swap: the inner getter recomputes to the same sum, the outer one is reused
	state = state.Set("x", 2).Set("y", 1)
	if v, _ := e.Evaluate(state, outer); v != 30 {
		t.Errorf("Evaluate = %v", v)
	}
	if innerCalls != 2 || outerCalls != 1 {
		t.Errorf("inner=%d outer=%d, want 2 and 1", innerCalls, outerCalls)
	}
}

func TestEvaluateReentrancy(t *testing.T) {
	e := New(nil)
	state := immutable.MapOf("a", 1)

	var innerErr error
	g := getter.New(func(args ...any) (any, error) {
		_, innerErr = e.Evaluate(state, getter.NewKeyPath("a"))
		// swallow the error on purpose
		return args[0], nil
	}, getter.NewKeyPath("a"))

	_, err := e.Evaluate(state, g)
	if !errors.Is(innerErr, fault.ErrReentrancy) {
		t.Errorf("inner Evaluate returned %v", innerErr)
	}
	if !errors.Is(err, fault.ErrReentrancy) {
		t.Errorf("outer Evaluate returned %v", err)
	}

	// the guard must be cleared again
	if v, err := e.Evaluate(state, getter.NewKeyPath("a")); err != nil || v != 1 {
		t.Errorf("Evaluate after reentrancy = %v, %v", v, err)
	}
	if e.Stats().Reentrant != 1 {
		t.Errorf("Reentrant = %d", e.Stats().Reentrant)
	}
}

func TestEvaluateComputeErrorClearsGuard(t *testing.T) {
	e := New(nil)
	boom := errors.New("boom")
	g := getter.New(func(...any) (any, error) { return nil, boom })

	if _, err := e.Evaluate(immutable.EmptyMap(), g); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if _, err := e.Evaluate(immutable.EmptyMap(), getter.NewKeyPath("x")); err != nil {
		t.Errorf("guard left set after error: %v", err)
	}
}

func TestEvaluateComputePanicClearsGuard(t *testing.T) {
	e := New(nil)
	g := getter.New(func(...any) (any, error) { panic("compute panic") })

	func() {
		defer func() { _ = recover() }()
		_, _ = e.Evaluate(immutable.EmptyMap(), g)
	}()

	if _, err := e.Evaluate(immutable.EmptyMap(), getter.NewKeyPath("x")); err != nil {
		t.Errorf("guard left set after panic: %v", err)
	}
}

func TestEvaluateInvalidGetter(t *testing.T) {
	e := New(nil)
	tests := []struct {
		name string
		dep  getter.Dependency
	}{
		{"nil", nil},
		{"nil compute", getter.New(nil, getter.NewKeyPath("a"))},
		{"nil getter pointer", (*getter.Getter)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Evaluate(immutable.EmptyMap(), tt.dep); !errors.Is(err, fault.ErrInvalidGetter) {
				t.Errorf("expected invalid getter error, got %v", err)
			}
		})
	}
}

func TestEvaluateDebugNilResult(t *testing.T) {
	nilGetter := getter.New(func(...any) (any, error) { return nil, nil })

	if v, err := New(nil).Evaluate(immutable.EmptyMap(), nilGetter); err != nil || v != nil {
		t.Errorf("non-debug evaluator: %v, %v", v, err)
	}

	debug := New(&Config{Debug: true})
	if _, err := debug.Evaluate(immutable.EmptyMap(), nilGetter); !errors.Is(err, fault.ErrInvariant) {
		t.Errorf("debug evaluator: expected invariant error, got %v", err)
	}

	// a key path that is not set resolves to nil, as a plain lookup does
	missing := getter.FromKeyPath(getter.NewKeyPath("user", "name"))
	state := immutable.MapOf("user", immutable.EmptyMap())
	if v, err := debug.Evaluate(state, missing); err != nil || v != nil {
		t.Errorf("debug evaluator, missing key path = %v, %v", v, err)
	}
	wrapped := getter.New(func(args ...any) (any, error) { return args[0] == nil, nil }, missing)
	if v, err := debug.Evaluate(state, wrapped); err != nil || v != true {
		t.Errorf("debug evaluator, getter over missing key path = %v, %v", v, err)
	}
}

func TestEvaluateComputeCannotCorruptArgs(t *testing.T) {
	e := New(nil)
	calls := 0
	g := getter.New(func(args ...any) (any, error) {
		calls++
		v := args[0]
		args[0] = "overwritten"
		return v, nil
	}, getter.NewKeyPath("a"))

	s1 := immutable.MapOf("a", 1, "b", 1)
	if v, err := e.Evaluate(s1, g); err != nil || v != 1 {
		t.Fatalf("Evaluate = %v, %v", v, err)
	}
	// unrelated change: the remembered arguments still match
	if v, err := e.Evaluate(s1.Set("b", 2), g); err != nil || v != 1 {
		t.Fatalf("Evaluate = %v, %v", v, err)
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
}

func TestEvaluatorReset(t *testing.T) {
	e := New(&Config{Cache: cache.NewBasicCache()})
	calls := 0
	g := countingGetter(&calls, getter.NewKeyPath("a"))
	state := immutable.MapOf("a", 1)

	_, _ = e.Evaluate(state, g)
	e.Reset()
	if e.Cache().Len() != 0 {
		t.Errorf("cache holds %d entries after reset", e.Cache().Len())
	}
	_, _ = e.Evaluate(state, g)
	if calls != 2 {
		t.Errorf("compute ran %d times, want 2", calls)
	}
}

func TestEvaluatorSharedRegistry(t *testing.T) {
	registry := metrics.NewRegistry()
	e := New(&Config{Registry: registry})
	g := getter.New(func(args ...any) (any, error) { return args[0], nil }, getter.NewKeyPath("a"))
	_, _ = e.Evaluate(immutable.MapOf("a", 1), g)

	c, ok := registry.Get(MetricComputes).(metrics.Counter)
	if !ok || c.Count() != 1 {
		t.Errorf("registry counter %s not updated", MetricComputes)
	}
}

func TestEvaluatorBoundedCache(t *testing.T) {
	e := New(&Config{Cache: cache.NewLRUCache(5, 1)})
	state := immutable.MapOf("a", 1)
	for i := 0; i < 20; i++ {
		g := getter.New(func(args ...any) (any, error) { return args[0], nil }, getter.NewKeyPath("a"))
		if _, err := e.Evaluate(state, g); err != nil {
			t.Fatal(err)
		}
	}
	if e.Cache().Len() > 5 {
		t.Errorf("cache grew to %d entries", e.Cache().Len())
	}
}
