package sink

import (
	"github.com/ValentinKolb/dFlux/lib/reactor"
	"github.com/lni/dragonboat/v4/logger"
)

// LoggingSink logs reactor events. Dispatch start and store results are
// logged at debug level, completed dispatches at info level.
type LoggingSink struct {
	log logger.ILogger
}

// NewLoggingSink creates a sink writing to the "dispatch" logger
func NewLoggingSink() *LoggingSink {
	return &LoggingSink{log: logger.GetLogger("dispatch")}
}

func (s *LoggingSink) OnDispatchStart(e reactor.DispatchEvent) {
	s.log.Debugf("Dispatch #%d: %s (payload=%v, batched=%t)", e.ID, e.ActionType, e.Payload, e.Batched)
}

func (s *LoggingSink) OnStoreHandled(e reactor.StoreEvent) {
	if e.Changed {
		s.log.Debugf("Dispatch #%d: store %s handled %s, state updated", e.DispatchID, e.StoreID, e.ActionType)
	}
}

func (s *LoggingSink) OnDispatchEnd(e reactor.DispatchEvent) {
	s.log.Infof("Dispatch #%d: %s done in %s (changed=%t)", e.ID, e.ActionType, e.Duration, e.Changed)
}

func (s *LoggingSink) OnDispatchError(e reactor.DispatchEvent, err error) {
	s.log.Errorf("Dispatch #%d: %s failed after %s: %v", e.ID, e.ActionType, e.Duration, err)
}

func (s *LoggingSink) OnNotify(e reactor.NotifyEvent) {
	s.log.Debugf("Notified %d observers (%s) in %s", e.Observers, e.Cause, e.Duration)
}

func (s *LoggingSink) OnRegister(e reactor.RegisterEvent) {
	if e.Replaced {
		s.log.Infof("Store %s replaced", e.StoreID)
		return
	}
	s.log.Infof("Store %s registered", e.StoreID)
}
