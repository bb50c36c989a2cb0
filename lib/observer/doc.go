// Package observer implements the change observer that turns state
// transitions into handler calls.
//
// Every subscription pairs a getter with a handler. On NotifyObservers the
// observer evaluates each getter against the new state (through the shared,
// memoized evaluator) and against the previous baseline, and calls the
// handler with the new value when the two differ. Values observed in one
// pass are remembered for the next one; values of getters that did not
// change are dropped and lazily re-derived from the baseline.
//
// Unsubscribing is safe at any time: a pass iterates over a snapshot of the
// subscriptions and skips entries that were unwatched in the meantime.
package observer
