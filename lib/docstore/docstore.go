package docstore

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
	"github.com/ValentinKolb/dFlux/lib/reactor"
)

// Action types handled by every docstore
const (
	ActionSet       = "doc/set"
	ActionDelete    = "doc/delete"
	ActionMerge     = "doc/merge"
	ActionIncrement = "doc/increment"
	ActionPush      = "doc/push"
)

// Actions lists all action types in a stable order
var Actions = []string{ActionSet, ActionDelete, ActionMerge, ActionIncrement, ActionPush}

// --------------------------------------------------------------------------
// Payload
// --------------------------------------------------------------------------

// Payload addresses a value inside the document of one store
type Payload struct {
	Store string `json:"store" yaml:"store"`
	Path  []any  `json:"path" yaml:"path"`
	Value any    `json:"value" yaml:"value"`
}

// ParsePayload accepts a Payload, a *Payload or a decoded map with the keys
// "store", "path" and "value". A string path is split at dots.
func ParsePayload(payload any) (Payload, error) {
	switch p := payload.(type) {
	case Payload:
		return p, nil
	case *Payload:
		if p == nil {
			return Payload{}, fault.New(fault.CodeInvalidPath, "nil payload")
		}
		return *p, nil
	case map[string]any:
		return payloadFromMap(p)
	case *immutable.Map:
		m, _ := immutable.ToNative(p).(map[string]any)
		return payloadFromMap(m)
	}
	return Payload{}, fault.Newf(fault.CodeInvalidPath, "unsupported payload type %T", payload)
}

func payloadFromMap(m map[string]any) (Payload, error) {
	store, ok := m["store"].(string)
	if !ok || store == "" {
		return Payload{}, fault.New(fault.CodeUnknownStore, "payload is missing the store id")
	}
	path, err := parsePath(m["path"])
	if err != nil {
		return Payload{}, err
	}
	return Payload{Store: store, Path: path, Value: m["value"]}, nil
}

func parsePath(v any) ([]any, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case string:
		if p == "" {
			return nil, nil
		}
		return getter.ParseKeyPath(p).Keys(), nil
	case []any:
		return p, nil
	case []string:
		out := make([]any, len(p))
		for i, k := range p {
			out[i] = k
		}
		return out, nil
	case *immutable.Vector:
		return p.ToSlice(), nil
	}
	return nil, fault.Newf(fault.CodeInvalidPath, "unsupported path type %T", v)
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store is a reactor.Store holding one document
type Store struct {
	reactor.Handlers
	id      string
	initial any
}

// New creates a docstore for id. initial is converted with immutable.FromNative;
// nil starts with an empty map.
func New(id string, initial any) *Store {
	doc := immutable.FromNative(initial)
	if doc == nil {
		doc = immutable.EmptyMap()
	}
	return &Store{id: id, initial: doc}
}

// ID returns the store id payloads must carry
func (s *Store) ID() string {
	return s.id
}

// Path returns the key path of a location inside this store's document
func (s *Store) Path(keys ...any) getter.KeyPath {
	return getter.NewKeyPath(append([]any{s.id}, keys...)...)
}

// Initialize registers the document handlers
func (s *Store) Initialize() {
	s.On(ActionSet, s.handler(s.set))
	s.On(ActionDelete, s.handler(s.remove))
	s.On(ActionMerge, s.handler(s.merge))
	s.On(ActionIncrement, s.handler(s.increment))
	s.On(ActionPush, s.handler(s.push))
}

func (s *Store) GetInitialState() any {
	return s.initial
}

// handler parses the payload, ignores actions addressed to other stores and
// turns path panics into errors
func (s *Store) handler(fn func(state any, p Payload) (any, error)) reactor.HandlerFunc {
	return func(state, payload any) (next any, err error) {
		p, err := ParsePayload(payload)
		if err != nil {
			return nil, err
		}
		if p.Store != s.id {
			return state, nil
		}

		defer func() {
			if r := recover(); r != nil {
				fe, ok := r.(*fault.Error)
				if !ok {
					panic(r)
				}
				next, err = nil, fe
			}
		}()
		return fn(state, p)
	}
}

func (s *Store) set(state any, p Payload) (any, error) {
	value := immutable.FromNative(p.Value)
	if len(p.Path) == 0 {
		return value, nil
	}
	return immutable.SetIn(state, p.Path, value), nil
}

func (s *Store) remove(state any, p Payload) (any, error) {
	if len(p.Path) == 0 {
		return s.initial, nil
	}
	return immutable.RemoveIn(state, p.Path), nil
}

func (s *Store) merge(state any, p Payload) (any, error) {
	other, ok := immutable.FromNative(p.Value).(*immutable.Map)
	if !ok {
		return nil, fault.Newf(fault.CodeInvalidPath, "merge value must be a map, got %T", p.Value)
	}

	var err error
	next := immutable.UpdateIn(state, p.Path, immutable.EmptyMap(), func(current any) any {
		m, ok := current.(*immutable.Map)
		if !ok {
			err = fault.Newf(fault.CodeInvalidPath, "cannot merge into %T at %v", current, p.Path)
			return current
		}
		return m.Merge(other)
	})
	return next, err
}

func (s *Store) increment(state any, p Payload) (any, error) {
	delta := p.Value
	if delta == nil {
		delta = 1
	}

	var err error
	next := immutable.UpdateIn(state, p.Path, 0, func(current any) any {
		sum, addErr := add(current, delta)
		if addErr != nil {
			err = fmt.Errorf("increment at %v: %w", p.Path, addErr)
			return current
		}
		return sum
	})
	return next, err
}

func (s *Store) push(state any, p Payload) (any, error) {
	value := immutable.FromNative(p.Value)

	var err error
	next := immutable.UpdateIn(state, p.Path, immutable.EmptyVector(), func(current any) any {
		v, ok := current.(*immutable.Vector)
		if !ok {
			err = fault.Newf(fault.CodeInvalidPath, "cannot push to %T at %v", current, p.Path)
			return current
		}
		return v.Push(value)
	})
	return next, err
}

// --------------------------------------------------------------------------
// Arithmetic
// --------------------------------------------------------------------------

// add sums two numbers. Integers stay integers (int if both operands are
// int, int64 otherwise), any float operand makes the result a float64.
func add(a, b any) (any, error) {
	if ai, ok := a.(int); ok {
		if bi, ok := b.(int); ok {
			return ai + bi, nil
		}
	}

	ai, aInt := toInt64(a)
	bi, bInt := toInt64(b)
	if aInt && bInt {
		return ai + bi, nil
	}

	af, aOk := toFloat64(a)
	bf, bOk := toFloat64(b)
	if !aOk || !bOk {
		return nil, fault.Newf(fault.CodeInvalidPath, "cannot add %T and %T", a, b)
	}
	return af + bf, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
