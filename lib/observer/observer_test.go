package observer

import (
	"testing"

	"github.com/ValentinKolb/dFlux/lib/evaluator"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
)

func setup(initial *immutable.Map) *ChangeObserver {
	return New(initial, evaluator.New(nil))
}

func TestNotifyOnlyChangedGetters(t *testing.T) {
	s0 := immutable.MapOf("a", 1, "b", 1)
	o := setup(s0)

	var aValues, bValues []any
	if _, err := o.OnChange(getter.NewKeyPath("a"), func(v any) { aValues = append(aValues, v) }); err != nil {
		t.Fatal(err)
	}
	if _, err := o.OnChange(getter.NewKeyPath("b"), func(v any) { bValues = append(bValues, v) }); err != nil {
		t.Fatal(err)
	}

	s1 := s0.Set("a", 2)
	if err := o.NotifyObservers(s1); err != nil {
		t.Fatal(err)
	}
	s2 := s1.Set("a", 3)
	if err := o.NotifyObservers(s2); err != nil {
		t.Fatal(err)
	}

	if len(aValues) != 2 || aValues[0] != 2 || aValues[1] != 3 {
		t.Errorf("a handler got %v", aValues)
	}
	if len(bValues) != 0 {
		t.Errorf("b handler must not fire, got %v", bValues)
	}
}

func TestNotifyStructuralEquality(t *testing.T) {
	s0 := immutable.MapOf("doc", immutable.MapOf("x", 1))
	o := setup(s0)
	calls := 0
	_, _ = o.OnChange(getter.NewKeyPath("doc"), func(any) { calls++ })

	// a new but equal value must not notify
	_ = o.NotifyObservers(s0.Set("doc", immutable.MapOf("x", 1)))
	if calls != 0 {
		t.Errorf("equal value notified %d times", calls)
	}
}

func TestUnwatchDuringNotify(t *testing.T) {
	s0 := immutable.MapOf("a", 1)
	o := setup(s0)

	var order []string
	var unwatchSecond func()
	_, _ = o.OnChange(getter.NewKeyPath("a"), func(any) {
		order = append(order, "first")
		unwatchSecond()
	})
	unwatchSecond, _ = o.OnChange(getter.NewKeyPath("a"), func(any) { order = append(order, "second") })
	_, _ = o.OnChange(getter.NewKeyPath("a"), func(any) { order = append(order, "third") })

	_ = o.NotifyObservers(s0.Set("a", 2))
	if len(order) != 2 || order[0] != "first" || order[1] != "third" {
		t.Errorf("handlers fired as %v", order)
	}
	if o.Len() != 2 {
		t.Errorf("Len = %d, want 2", o.Len())
	}

	// calling unwatch again is harmless
	unwatchSecond()
	if o.Len() != 2 {
		t.Errorf("second unwatch changed Len to %d", o.Len())
	}
}

func TestGetterObserver(t *testing.T) {
	s0 := immutable.MapOf("items", immutable.VectorOf(1, 2))
	o := setup(s0)
	total := getter.New(func(args ...any) (any, error) {
		sum := 0
		args[0].(*immutable.Vector).Range(func(_ int, v any) bool {
			sum += v.(int)
			return true
		})
		return sum, nil
	}, getter.NewKeyPath("items"))

	var got []any
	_, _ = o.OnChange(total, func(v any) { got = append(got, v) })

	s1 := s0.Set("items", immutable.VectorOf(2, 1)) // same sum
	_ = o.NotifyObservers(s1)
	s2 := s1.Set("items", immutable.VectorOf(2, 1, 4))
	_ = o.NotifyObservers(s2)

	if len(got) != 1 || got[0] != 7 {
		t.Errorf("handler got %v, want [7]", got)
	}
}

func TestReset(t *testing.T) {
	s0 := immutable.MapOf("a", 1)
	o := setup(s0)
	calls := 0
	_, _ = o.OnChange(getter.NewKeyPath("a"), func(any) { calls++ })

	o.Reset(s0)
	_ = o.NotifyObservers(s0.Set("a", 2))
	if calls != 0 || o.Len() != 0 {
		t.Errorf("reset must drop observers (calls=%d, len=%d)", calls, o.Len())
	}
}

func TestOnChangeInvalid(t *testing.T) {
	o := setup(immutable.EmptyMap())
	if _, err := o.OnChange(getter.New(nil), func(any) {}); err == nil {
		t.Error("expected error for invalid getter")
	}
	if _, err := o.OnChange(getter.NewKeyPath("a"), nil); err == nil {
		t.Error("expected error for nil handler")
	}
}
