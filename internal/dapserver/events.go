package dapserver

import (
	"github.com/google/go-dap"
	"pkt.systems/ffdebug/internal/eventbus"
)

func newEvent(name string) dap.Event {
	return dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: name}
}

// eventMessage translates a session event into its protocol event, or nil.
func eventMessage(ev eventbus.Event) dap.Message {
	switch ev.Type {
	case eventbus.EventInitialized:
		return &dap.InitializedEvent{Event: newEvent("initialized")}
	case eventbus.EventStopped:
		return &dap.StoppedEvent{
			Event: newEvent("stopped"),
			Body: dap.StoppedEventBody{
				Reason:            string(ev.Stopped.Reason),
				Description:       ev.Stopped.Description,
				ThreadId:          ev.Stopped.ThreadID,
				AllThreadsStopped: true,
			},
		}
	case eventbus.EventOutput:
		return &dap.OutputEvent{
			Event: newEvent("output"),
			Body:  dap.OutputEventBody{Category: string(ev.Output.Category), Output: ev.Output.Text},
		}
	case eventbus.EventBreakpoint:
		return &dap.BreakpointEvent{
			Event: newEvent("breakpoint"),
			Body:  dap.BreakpointEventBody{Reason: ev.Breakpoint.Reason, Breakpoint: toBreakpoint(ev.Breakpoint.Breakpoint)},
		}
	case eventbus.EventTerminated:
		return &dap.TerminatedEvent{Event: newEvent("terminated")}
	}
	return nil
}
