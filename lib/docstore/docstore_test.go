package docstore

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
	"github.com/ValentinKolb/dFlux/lib/reactor"
)

func newReactor(t *testing.T) *reactor.Reactor {
	t.Helper()
	r := reactor.New(&reactor.Config{Debug: true})
	err := r.RegisterStores(map[string]reactor.Store{
		"app":   New("app", map[string]any{"user": map[string]any{"name": "ann"}, "visits": 1}),
		"other": New("other", nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func eval(t *testing.T, r *reactor.Reactor, path string) any {
	t.Helper()
	v, err := r.Evaluate(getter.ParseKeyPath(path))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestActions(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		payload any
		path    string
		want    any
	}{
		{"set nested", ActionSet, Payload{Store: "app", Path: []any{"user", "name"}, Value: "bob"}, "app.user.name", "bob"},
		{"set creates maps", ActionSet, Payload{Store: "app", Path: []any{"a", "b"}, Value: 1}, "app.a.b", 1},
		{"set native value", ActionSet, Payload{Store: "app", Path: []any{"tags"}, Value: []any{"x"}}, "app.tags", immutable.VectorOf("x")},
		{"delete", ActionDelete, Payload{Store: "app", Path: []any{"user", "name"}}, "app.user", immutable.EmptyMap()},
		{"merge", ActionMerge, Payload{Store: "app", Path: []any{"user"}, Value: map[string]any{"age": 30}}, "app.user", immutable.MapOf("name", "ann", "age", 30)},
		{"merge into missing", ActionMerge, Payload{Store: "app", Path: []any{"prefs"}, Value: map[string]any{"dark": true}}, "app.prefs.dark", true},
		{"increment default", ActionIncrement, Payload{Store: "app", Path: []any{"visits"}}, "app.visits", 2},
		{"increment by value", ActionIncrement, Payload{Store: "app", Path: []any{"visits"}, Value: 10}, "app.visits", 11},
		{"increment float", ActionIncrement, Payload{Store: "app", Path: []any{"visits"}, Value: 0.5}, "app.visits", 1.5},
		{"increment missing", ActionIncrement, Payload{Store: "app", Path: []any{"clicks"}}, "app.clicks", 1},
		{"push to missing", ActionPush, Payload{Store: "app", Path: []any{"log"}, Value: "hi"}, "app.log", immutable.VectorOf("hi")},
		{"map payload", ActionSet, map[string]any{"store": "app", "path": "user.name", "value": "cid"}, "app.user.name", "cid"},
		{"other store untouched", ActionSet, Payload{Store: "other", Path: []any{"x"}, Value: 1}, "app.user.name", "ann"},
		{"set root", ActionSet, Payload{Store: "app", Value: map[string]any{"fresh": true}}, "app", immutable.MapOf("fresh", true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReactor(t)
			if err := r.Dispatch(tt.action, tt.payload); err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if got := eval(t, r, tt.path); !immutable.Is(got, tt.want) {
				t.Errorf("%s = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDeleteRootResets(t *testing.T) {
	r := newReactor(t)
	_ = r.Dispatch(ActionSet, Payload{Store: "app", Path: []any{"visits"}, Value: 9})
	if err := r.Dispatch(ActionDelete, Payload{Store: "app"}); err != nil {
		t.Fatal(err)
	}
	if got := eval(t, r, "app.visits"); got != 1 {
		t.Errorf("visits = %v, want initial 1", got)
	}
}

func TestPushAppends(t *testing.T) {
	r := newReactor(t)
	for _, v := range []string{"a", "b", "c"} {
		if err := r.Dispatch(ActionPush, Payload{Store: "other", Path: []any{"items"}, Value: v}); err != nil {
			t.Fatal(err)
		}
	}
	if got := eval(t, r, "other.items"); !immutable.Is(got, immutable.VectorOf("a", "b", "c")) {
		t.Errorf("items = %v", got)
	}
	if got := eval(t, r, "other.items.1"); got != "b" {
		t.Errorf("items.1 = %v", got)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		payload any
		want    error
	}{
		{"through scalar", ActionSet, Payload{Store: "app", Path: []any{"visits", "x"}, Value: 1}, fault.ErrInvalidPath},
		{"merge into scalar", ActionMerge, Payload{Store: "app", Path: []any{"visits"}, Value: map[string]any{}}, fault.ErrInvalidPath},
		{"merge non-map", ActionMerge, Payload{Store: "app", Path: []any{"user"}, Value: 1}, fault.ErrInvalidPath},
		{"increment string", ActionIncrement, Payload{Store: "app", Path: []any{"user", "name"}}, fault.ErrInvalidPath},
		{"push to map", ActionPush, Payload{Store: "app", Path: []any{"user"}, Value: 1}, fault.ErrInvalidPath},
		{"missing store", ActionSet, map[string]any{"path": "a"}, fault.ErrUnknownStore},
		{"bad payload", ActionSet, 42, fault.ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReactor(t)
			before := r.State()
			err := r.Dispatch(tt.action, tt.payload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if r.State() != before {
				t.Error("failed dispatch changed the state")
			}
		})
	}
}

func TestAdd(t *testing.T) {
	tests := []struct {
		a, b any
		want any
	}{
		{1, 2, 3},
		{int64(1), 2, int64(3)},
		{1, 0.5, 1.5},
		{int32(2), uint8(3), int64(5)},
	}
	for _, tt := range tests {
		got, err := add(tt.a, tt.b)
		if err != nil || got != tt.want {
			t.Errorf("add(%v, %v) = %v (%T), %v; want %v (%T)", tt.a, tt.b, got, got, err, tt.want, tt.want)
		}
	}
	if _, err := add("x", 1); err == nil {
		t.Error("expected error for non-numbers")
	}
}
