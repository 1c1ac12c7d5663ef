package rdp

import (
	"sync"

	"pkt.systems/ffdebug/internal/urlmap"
	"pkt.systems/ffdebug/schema"
)

// TabActor attaches to a tab and creates its thread context.
type TabActor struct {
	Base
	resolver urlmap.Resolver
	listener Listener

	mu      sync.Mutex
	context *ContextActor
}

// NewTabActor constructs a tab proxy. Register it before Attach.
func NewTabActor(d *Dispatcher, name string, resolver urlmap.Resolver, listener Listener) *TabActor {
	if listener == nil {
		listener = nopListener{}
	}
	a := &TabActor{resolver: resolver, listener: listener}
	a.bind(d, name)
	return a
}

// Attach asks the tab for its thread actor; the answer arrives as tabAttached.
func (a *TabActor) Attach() error {
	return a.Send(schema.Request{"type": "attach"})
}

// Context returns the tab's thread context once attached.
func (a *TabActor) Context() *ContextActor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.context
}

func (a *TabActor) ProcessCommand(pkt schema.Packet) bool {
	return a.process(pkt, a.notify, nil)
}

func (a *TabActor) notify(pkt schema.Packet) bool {
	switch pkt.Type {
	case "tabAttached":
		var body struct {
			ThreadActor string `json:"threadActor"`
		}
		if err := pkt.Decode(&body); err != nil || body.ThreadActor == "" {
			a.log.Warn("rdp tabAttached without thread actor", "err", err)
			return true
		}
		thread := NewContextActor(a.d, body.ThreadActor, a.resolver, a.listener)
		a.d.AddActor(thread)
		a.mu.Lock()
		a.context = thread
		a.mu.Unlock()
		a.listener.OnContext(thread)
		thread.Start()
		return true
	case "frameUpdate":
		return true
	}
	return false
}
