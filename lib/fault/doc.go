// Package fault defines the error taxonomy shared by all dFlux packages.
//
// Every invariant violation raised by the persistent structures, the caches,
// the evaluator or the reactor is reported as a *Error carrying a Code and a
// descriptive message. Callers can branch on the kind of failure with
// errors.Is against the exported sentinels:
//
//	if errors.Is(err, fault.ErrReentrancy) {
//	    // dispatch or evaluate was called from inside itself
//	}
//
// Codes:
//
//   - CodeInvariant: a runtime invariant was violated (non-immutable state in
//     debug mode, nil reducer result in debug mode, ...)
//   - CodeReentrancy: Dispatch was called during a dispatch, or Evaluate was
//     called from inside a getter's compute function
//   - CodeCacheOrdering: a cache write would have replaced a newer entry with an
//     older one
//   - CodeInvalidGetter: a malformed getter was passed to the evaluator
//   - CodeInvalidPath: a key path walked through a value that is not a container
//   - CodeUnknownStore: an operation referenced a store id that is not registered
package fault
