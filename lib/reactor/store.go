package reactor

// --------------------------------------------------------------------------
// Store Contract
// --------------------------------------------------------------------------

// Store owns one named slice of the reactor state. Handle must be a pure
// reducer: it returns the next state for the slice (or the same state if the
// action is of no interest) and never reads other slices.
type Store interface {
	// GetInitialState returns the state of the slice at registration
	GetInitialState() any

	// Handle folds one action into the slice state
	Handle(state any, actionType string, payload any) (any, error)
}

// Initializer is implemented by stores that set up action handlers when
// they are registered.
type Initializer interface {
	Initialize()
}

// StateSerializer is implemented by stores that control how their slice is
// serialized. Stores without it are serialized with immutable.ToNative and
// deserialized with immutable.FromNative. Serialize may return nil to omit
// the slice from the output.
type StateSerializer interface {
	Serialize(state any) (any, error)
	Deserialize(data any) (any, error)
}

// Resetter is implemented by stores that compute their own state on Reset.
// Stores without it return to GetInitialState.
type Resetter interface {
	HandleReset(state any) (any, error)
}

// --------------------------------------------------------------------------
// Handler Registry
// --------------------------------------------------------------------------

// HandlerFunc reduces the slice state for one action type
type HandlerFunc func(state any, payload any) (any, error)

// Handlers is an embeddable action type -> handler registry that implements
// the Handle half of Store:
//
//	type CounterStore struct {
//		reactor.Handlers
//	}
//
//	func (s *CounterStore) Initialize() {
//		s.On("INCREMENT", func(state, _ any) (any, error) {
//			m := state.(*immutable.Map)
//			return m.Set("count", m.GetOr("count", 0).(int)+1), nil
//		})
//	}
//
// Unknown action types leave the state unchanged.
type Handlers struct {
	handlers map[string]HandlerFunc
}

// On registers fn for actionType, replacing any earlier handler
func (h *Handlers) On(actionType string, fn HandlerFunc) {
	if h.handlers == nil {
		h.handlers = make(map[string]HandlerFunc)
	}
	h.handlers[actionType] = fn
}

// Handle dispatches to the handler registered for actionType
func (h *Handlers) Handle(state any, actionType string, payload any) (any, error) {
	fn, ok := h.handlers[actionType]
	if !ok {
		return state, nil
	}
	return fn(state, payload)
}

// Handles reports whether a handler is registered for actionType
func (h *Handlers) Handles(actionType string) bool {
	_, ok := h.handlers[actionType]
	return ok
}

// funcStore is the Store built by NewStore
type funcStore struct {
	Handlers
	initial any
	setup   func(h *Handlers)
}

// NewStore creates a store with the given initial state; setup registers
// its handlers through On.
func NewStore(initial any, setup func(h *Handlers)) Store {
	return &funcStore{initial: initial, setup: setup}
}

func (s *funcStore) Initialize() {
	if s.setup != nil {
		s.setup(&s.Handlers)
	}
}

func (s *funcStore) GetInitialState() any {
	return s.initial
}
