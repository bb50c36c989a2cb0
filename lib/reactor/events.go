package reactor

import (
	"time"
)

// --------------------------------------------------------------------------
// Debug Sink
// --------------------------------------------------------------------------

// DebugSink receives structured events about what the reactor does. All
// methods are called synchronously on the dispatching goroutine and must not
// call back into the reactor.
type DebugSink interface {
	OnDispatchStart(e DispatchEvent)
	OnStoreHandled(e StoreEvent)
	OnDispatchEnd(e DispatchEvent)
	OnDispatchError(e DispatchEvent, err error)
	OnNotify(e NotifyEvent)
	OnRegister(e RegisterEvent)
}

// DispatchEvent describes one dispatch
type DispatchEvent struct {
	// ID is the sequence number of the dispatch, starting at 1
	ID         uint64
	ActionType string
	Payload    any
	// Batched is set for dispatches inside Batch (notification is deferred)
	Batched bool
	// Changed reports whether the state changed (end events only)
	Changed bool
	// Duration covers reducing and, for unbatched dispatches, notifying (end and error events only)
	Duration time.Duration
}

// StoreEvent describes the result of one store reducing one action
type StoreEvent struct {
	DispatchID uint64
	StoreID    string
	ActionType string
	Changed    bool
}

// NotifyCause tells what triggered a notification pass
type NotifyCause string

const (
	CauseDispatch NotifyCause = "dispatch"
	CauseBatch    NotifyCause = "batch"
	CauseRegister NotifyCause = "register"
	CauseLoad     NotifyCause = "load"
)

// NotifyEvent describes one change observer pass
type NotifyEvent struct {
	Cause     NotifyCause
	Observers int
	Duration  time.Duration
}

// RegisterEvent describes a store registration
type RegisterEvent struct {
	StoreID string
	// Replaced is set if a store with the same id was registered before
	Replaced bool
}

// NopSink ignores all events. Embed it to implement only some methods.
type NopSink struct{}

func (NopSink) OnDispatchStart(DispatchEvent)        {}
func (NopSink) OnStoreHandled(StoreEvent)            {}
func (NopSink) OnDispatchEnd(DispatchEvent)          {}
func (NopSink) OnDispatchError(DispatchEvent, error) {}
func (NopSink) OnNotify(NotifyEvent)                 {}
func (NopSink) OnRegister(RegisterEvent)             {}
