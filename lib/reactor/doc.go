// Package reactor implements the single-writer state container.
//
// A Reactor owns one immutable map from store id to store state. Stores are
// pure reducers; the only way to change state is Dispatch, which folds an
// action through every store in registration order and then lets the change
// observer notify subscribers whose observed value changed.
//
// Key Components:
//
//   - Reactor: the dispatch loop. It tracks whether a dispatch is in
//     progress (a dispatch from inside a store handler or an observer fails
//     with ErrDispatchInProgress) and the batch depth (dispatches inside
//     Batch are applied immediately but notified once, when the outermost
//     Batch returns). Every flag is restored on every exit path, so a failed
//     dispatch never blocks later ones.
//
//   - Store: GetInitialState and Handle, optionally Initialize (handler
//     setup at registration), Serialize/Deserialize (StateSerializer) and
//     HandleReset (Resetter). Handlers and NewStore help building stores
//     from per-action handler functions.
//
//   - Evaluation: Evaluate, EvaluateToNative and Observe accept a
//     getter.KeyPath or a *getter.Getter. Getter results are memoized by the
//     reactor's evaluator in an LRU cache bounded by Config.CacheLimit.
//
//   - DebugSink: structured events for dispatch start/end/error, per-store
//     results, notification passes and registrations. See package sink for
//     logging, metrics and timing implementations.
//
// Debug mode:
//
// With Config.Debug set, store states must be immutable values (see
// immutable.IsImmutable) and reducers, reset handlers and getters must not
// return nil. Violations are reported as fault.CodeInvariant errors.
//
// Example usage:
//
//	r := reactor.New(nil)
//	_ = r.RegisterStore("counter", reactor.NewStore(immutable.MapOf("count", 0), func(h *reactor.Handlers) {
//		h.On("INCREMENT", func(state, _ any) (any, error) {
//			m := state.(*immutable.Map)
//			return m.Set("count", m.GetOr("count", 0).(int)+1), nil
//		})
//	}))
//	unwatch, _ := r.Observe(getter.NewKeyPath("counter", "count"), func(v any) {
//		fmt.Println("count is now", v)
//	})
//	defer unwatch()
//	_ = r.Dispatch("INCREMENT", nil)
package reactor
