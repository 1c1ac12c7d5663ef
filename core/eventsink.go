package core

import "pkt.systems/ffdebug/schema"

// EventSink receives editor-facing events from a debug session.
type EventSink interface {
	OnInitialized(event schema.InitializedEvent)
	OnStopped(event schema.StoppedEvent)
	OnOutput(event schema.OutputEvent)
	OnBreakpoint(event schema.BreakpointEvent)
	OnTerminated(event schema.TerminatedEvent)
}

type nopSink struct{}

func (nopSink) OnInitialized(schema.InitializedEvent) {}
func (nopSink) OnStopped(schema.StoppedEvent)         {}
func (nopSink) OnOutput(schema.OutputEvent)           {}
func (nopSink) OnBreakpoint(schema.BreakpointEvent)   {}
func (nopSink) OnTerminated(schema.TerminatedEvent)   {}
