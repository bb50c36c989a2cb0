package sink

import "github.com/ValentinKolb/dFlux/lib/reactor"

type multiSink []reactor.DebugSink

// Multi returns a sink forwarding every event to all sinks in order.
// Nil sinks are skipped.
func Multi(sinks ...reactor.DebugSink) reactor.DebugSink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) OnDispatchStart(e reactor.DispatchEvent) {
	for _, s := range m {
		s.OnDispatchStart(e)
	}
}

func (m multiSink) OnStoreHandled(e reactor.StoreEvent) {
	for _, s := range m {
		s.OnStoreHandled(e)
	}
}

func (m multiSink) OnDispatchEnd(e reactor.DispatchEvent) {
	for _, s := range m {
		s.OnDispatchEnd(e)
	}
}

func (m multiSink) OnDispatchError(e reactor.DispatchEvent, err error) {
	for _, s := range m {
		s.OnDispatchError(e, err)
	}
}

func (m multiSink) OnNotify(e reactor.NotifyEvent) {
	for _, s := range m {
		s.OnNotify(e)
	}
}

func (m multiSink) OnRegister(e reactor.RegisterEvent) {
	for _, s := range m {
		s.OnRegister(e)
	}
}
