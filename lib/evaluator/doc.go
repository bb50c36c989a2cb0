// Package evaluator resolves key paths and getters against immutable state
// and memoizes getter results.
//
// Evaluation of a getter:
//
//  1. Fast path: if the cache holds an entry for the getter that was stamped
//     with the structural hash of the current state, the cached value is
//     returned without touching the dependencies.
//  2. Every dependency is resolved; nested getters recurse through the same
//     memoized path, key paths are plain lookups.
//  3. Stale but reusable: if an entry exists from an earlier state and the
//     freshly resolved dependency values equal the recorded ones
//     (immutable.Is), the old value is returned and the entry is restamped
//     with the current state. Unrelated state changes therefore never force
//     a recomputation.
//  4. Otherwise the compute function runs and the result is cached together
//     with the state hash, a monotonic state version and the arguments.
//
// Reentrancy:
//
// While a compute function runs, the evaluator rejects Evaluate calls with
// ErrReentrantEvaluate. Even if the compute function swallows that error,
// the outer evaluation fails as well. The guard lives on the Evaluator
// instance and is cleared on every exit path.
//
// Metrics:
//
// Hits, reuses, computes and rejected reentrant calls are counted in a
// go-metrics registry (see Stats), which a host can share across components.
package evaluator
