package ffdebug

import (
	"pkt.systems/ffdebug/core"
	"pkt.systems/ffdebug/schema"
	"pkt.systems/pslog"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnInitialized(event schema.InitializedEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnInitialized(event)
	}
}

func (f eventFanout) OnStopped(event schema.StoppedEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnStopped(event)
	}
}

func (f eventFanout) OnOutput(event schema.OutputEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnOutput(event)
	}
}

func (f eventFanout) OnBreakpoint(event schema.BreakpointEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnBreakpoint(event)
	}
}

func (f eventFanout) OnTerminated(event schema.TerminatedEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTerminated(event)
	}
}

// logSink records session events in the adapter log.
type logSink struct {
	log pslog.Logger
}

func (s logSink) OnInitialized(event schema.InitializedEvent) {
	s.log.Debug("event initialized", "session", event.SessionID)
}

func (s logSink) OnStopped(event schema.StoppedEvent) {
	s.log.Debug("event stopped", "session", event.SessionID, "reason", event.Reason, "description", event.Description)
}

func (s logSink) OnOutput(event schema.OutputEvent) {
	s.log.Trace("event output", "session", event.SessionID, "category", event.Category, "bytes", len(event.Text))
}

func (s logSink) OnBreakpoint(event schema.BreakpointEvent) {
	s.log.Debug("event breakpoint", "session", event.SessionID, "reason", event.Reason, "id", event.Breakpoint.ID, "line", event.Breakpoint.Line, "verified", event.Breakpoint.Verified)
}

func (s logSink) OnTerminated(event schema.TerminatedEvent) {
	s.log.Debug("event terminated", "session", event.SessionID, "err", event.Err)
}
