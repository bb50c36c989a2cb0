package cache

import (
	"github.com/ValentinKolb/dFlux/lib/immutable"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Entry is the memoized result of evaluating one getter against one version of state
type Entry struct {
	// Value is the computed result
	Value any
	// StateHash is the structural hash of the state the value was computed for
	StateHash uint32
	// DispatchID is the monotonic state version the entry was written at.
	// A cache never replaces an entry with one of a lower DispatchID.
	DispatchID uint64
	// Args are the resolved dependency values the value was computed from
	Args []any
}

// Cache is a persistent memo table. Items are compared with immutable.Is and
// hashed with immutable.Hash, so any value (typically a getter) can be an item.
// Every operation returns a new cache and leaves the receiver unchanged.
//
// Thread-safety: caches are immutable values and may be shared freely.
type Cache interface {
	// Lookup returns the entry stored for item
	Lookup(item any) (Entry, bool)

	// Has reports whether an entry is stored for item
	Has(item any) bool

	// Hit records a read of item (recency bookkeeping). Absent items are ignored.
	Hit(item any) Cache

	// Miss stores entry for item. It fails with a fault.CodeCacheOrdering error
	// if the stored entry has a greater DispatchID than entry.
	Miss(item any, entry Entry) (Cache, error)

	// Evict removes item. Absent items are ignored.
	Evict(item any) Cache

	// Len returns the number of stored entries
	Len() int

	// AsMap returns all entries as a persistent map from item to Entry
	AsMap() *immutable.Map
}
