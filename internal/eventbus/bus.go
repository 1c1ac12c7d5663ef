package eventbus

import (
	"context"
	"sync"

	"pkt.systems/ffdebug/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventInitialized signals the session accepts breakpoint configuration.
	EventInitialized EventType = "initialized"
	// EventStopped carries a pause of the target.
	EventStopped EventType = "stopped"
	// EventOutput carries console and diagnostic text.
	EventOutput EventType = "output"
	// EventBreakpoint carries an out-of-band breakpoint update.
	EventBreakpoint EventType = "breakpoint"
	// EventTerminated signals the session ended.
	EventTerminated EventType = "terminated"
)

// Event is an editor-facing event emitted by a debug session.
type Event struct {
	Type        EventType
	Initialized schema.InitializedEvent
	Stopped     schema.StoppedEvent
	Output      schema.OutputEvent
	Breakpoint  schema.BreakpointEvent
	Terminated  schema.TerminatedEvent
}

// SessionID returns the session the event belongs to.
func (e Event) SessionID() string {
	switch e.Type {
	case EventInitialized:
		return e.Initialized.SessionID
	case EventStopped:
		return e.Stopped.SessionID
	case EventOutput:
		return e.Output.SessionID
	case EventBreakpoint:
		return e.Breakpoint.SessionID
	case EventTerminated:
		return e.Terminated.SessionID
	}
	return ""
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
	// sending is held for reading while a publish may write to ch.
	sending sync.RWMutex
}

// Bus fans session events out to per-session subscribers. Output is dropped
// when a subscriber falls behind; every other event waits for delivery.
type Bus struct {
	mu    sync.Mutex
	subs  map[string]map[*subscriber]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[string]map[*subscriber]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the session and returns a channel + cancel.
func (b *Bus) Subscribe(sessionID string) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	sub := &subscriber{ch: make(chan Event, b.depth), done: make(chan struct{})}
	b.mu.Lock()
	sessionSubs := b.subs[sessionID]
	if sessionSubs == nil {
		sessionSubs = make(map[*subscriber]struct{})
		b.subs[sessionID] = sessionSubs
	}
	sessionSubs[sub] = struct{}{}
	count := len(sessionSubs)
	b.mu.Unlock()
	b.log.With("session", sessionID).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[sessionID]; subs != nil {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(b.subs, sessionID)
				}
			}
			b.mu.Unlock()
			close(sub.done)
			sub.sending.Lock()
			close(sub.ch)
			sub.sending.Unlock()
			b.log.With("session", sessionID).Debug("eventbus unsubscribe")
		})
	}
}

// OnInitialized publishes an initialized event.
func (b *Bus) OnInitialized(event schema.InitializedEvent) {
	b.publish(event.SessionID, Event{Type: EventInitialized, Initialized: event}, true)
}

// OnStopped publishes a stopped event.
func (b *Bus) OnStopped(event schema.StoppedEvent) {
	b.publish(event.SessionID, Event{Type: EventStopped, Stopped: event}, true)
}

// OnOutput publishes an output event.
func (b *Bus) OnOutput(event schema.OutputEvent) {
	b.publish(event.SessionID, Event{Type: EventOutput, Output: event}, false)
}

// OnBreakpoint publishes a breakpoint event.
func (b *Bus) OnBreakpoint(event schema.BreakpointEvent) {
	b.publish(event.SessionID, Event{Type: EventBreakpoint, Breakpoint: event}, true)
}

// OnTerminated publishes a terminated event.
func (b *Bus) OnTerminated(event schema.TerminatedEvent) {
	b.publish(event.SessionID, Event{Type: EventTerminated, Terminated: event}, true)
}

func (b *Bus) publish(sessionID string, event Event, wait bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	sessionSubs := b.subs[sessionID]
	subs := make([]*subscriber, 0, len(sessionSubs))
	for sub := range sessionSubs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		if !sub.deliver(event, wait) {
			dropped++
		}
	}
	if dropped > 0 {
		b.log.With("session", sessionID).Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}

func (s *subscriber) deliver(event Event, wait bool) bool {
	s.sending.RLock()
	defer s.sending.RUnlock()
	select {
	case <-s.done:
		return false
	default:
	}
	if !wait {
		select {
		case s.ch <- event:
			return true
		default:
			return false
		}
	}
	select {
	case s.ch <- event:
		return true
	case <-s.done:
		return false
	}
}
