// Package immutable provides the persistent collections that hold all
// reactor state: Map, OrderedMap and Vector.
//
// Every update returns a new collection that shares unchanged structure with
// its predecessor, so keeping old versions around (for change detection or
// snapshots) is cheap and a collection can be handed to any number of
// goroutines without copying.
//
// Key Components:
//
//   - Map: a hash array mapped trie (HAMT) with 32-way branching. Small
//     levels are bitmap indexed nodes, levels with more than 16 children are
//     promoted to full array nodes, keys with equal hashes share a collision
//     node and single entries live in value nodes.
//
//   - Vector: a 32-way trie plus a tail block. Appends go to the tail until
//     it is full, then the tail is pushed into the trie, growing it by one
//     level whenever the root overflows.
//
//   - OrderedMap: a Map from key to position combined with a Vector of
//     entries. Iteration follows insertion order, removals leave holes that
//     are compacted once they outnumber the live entries.
//
//   - Builders: WithMutations hands out a transient builder. Nodes created
//     by the builder carry its owner token and are edited in place, nodes
//     shared with the source are copied on first write. After WithMutations
//     returns the builder is frozen.
//
// Equality and Hashing:
//
// Is compares by value: numbers compare numerically across Go types,
// collections compare structurally and everything else compares by Go
// equality (reflect.DeepEqual for slices and maps). Hash maps every value to
// a non-negative 31 bit integer that agrees with Is. Collection hashes are
// computed on first use and cached; the hash of long strings is memoized in
// a small process wide table.
//
// Key Paths:
//
// GetIn, HasIn, SetIn, UpdateIn and RemoveIn walk nested collections along a
// key path. Missing intermediate levels are created as empty Maps; walking
// through a value that is not a collection panics with a fault.CodeInvalidPath
// error.
//
// Thread-safety:
//
// Collections are safe for concurrent reads. Builders are not safe for
// concurrent use and must not escape the WithMutations callback.
package immutable
