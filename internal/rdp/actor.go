package rdp

import (
	"context"
	"sync"

	"pkt.systems/ffdebug/internal/logx"
	"pkt.systems/ffdebug/schema"
	"pkt.systems/pslog"
)

// Call is one request issued through an actor queue.
type Call struct {
	Request schema.Request
	Reply   schema.Packet
	Error   error
	Done    chan *Call
}

func (c *Call) done() {
	select {
	case c.Done <- c:
	default:
	}
}

// Wait blocks until the call settles or ctx ends. An abandoned call stays in
// its queue so later replies still pair with the right request.
func (c *Call) Wait(ctx context.Context) (schema.Packet, error) {
	select {
	case <-ctx.Done():
		return schema.Packet{}, ctx.Err()
	case <-c.Done:
		return c.Reply, c.Error
	}
}

// Base carries the behavior every actor shares: the single-flight request
// queue and packet classification. At most one request per actor is on the
// wire; replies carry no id, so queue order is the only correlation.
type Base struct {
	name string
	d    *Dispatcher
	log  pslog.Logger

	mu       sync.Mutex
	queue    []*Call
	inFlight bool
}

func (b *Base) bind(d *Dispatcher, name string) {
	b.name = name
	b.d = d
	b.log = logx.WithActor(d.log, name)
}

// Name returns the browser-side actor name.
func (b *Base) Name() string {
	return b.name
}

// Go queues req and returns immediately. The request is written once every
// earlier request to this actor has settled.
func (b *Base) Go(req schema.Request) *Call {
	req["to"] = b.name
	call := &Call{Request: req, Done: make(chan *Call, 1)}
	b.mu.Lock()
	b.queue = append(b.queue, call)
	var head *Call
	if !b.inFlight {
		b.inFlight = true
		head = b.queue[0]
	}
	depth := len(b.queue)
	b.mu.Unlock()
	b.log.Trace("rdp request queued", "type", req.Command(), "depth", depth)
	b.transmit(head)
	return call
}

// Request issues req and waits for its reply.
func (b *Base) Request(ctx context.Context, req schema.Request) (schema.Packet, error) {
	return b.Go(req).Wait(ctx)
}

// Send writes req without expecting a reply and without touching the queue.
func (b *Base) Send(req schema.Request) error {
	req["to"] = b.name
	return b.d.Relay(b.name, req)
}

// busy reports whether a queued request is waiting on the wire.
func (b *Base) busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight && len(b.queue) > 0
}

// transmit writes head, which the caller claimed by setting inFlight. The
// write happens outside b.mu on the calling goroutine, which is the read
// loop when a reply releases the next request. Heads that cannot be written
// are failed and popped so the queue never stalls.
func (b *Base) transmit(head *Call) {
	for head != nil {
		err := b.d.Relay(b.name, head.Request)
		if err == nil {
			return
		}
		b.mu.Lock()
		if len(b.queue) == 0 || b.queue[0] != head {
			// fail already settled the queue.
			b.mu.Unlock()
			return
		}
		b.queue[0] = nil
		b.queue = b.queue[1:]
		head.Error = err
		next := b.claimLocked()
		b.mu.Unlock()
		head.done()
		head = next
	}
}

// claimLocked returns the next head to write, or clears inFlight.
func (b *Base) claimLocked() *Call {
	if len(b.queue) == 0 {
		b.inFlight = false
		return nil
	}
	b.inFlight = true
	return b.queue[0]
}

// settleHead completes the in-flight request, then writes the next one.
func (b *Base) settleHead(reply schema.Packet, err error) bool {
	b.mu.Lock()
	if !b.inFlight || len(b.queue) == 0 {
		b.mu.Unlock()
		return false
	}
	head := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	head.Reply, head.Error = reply, err
	next := b.claimLocked()
	b.mu.Unlock()
	head.done()
	b.transmit(next)
	return true
}

// process classifies pkt: a type field makes it a notification, an error
// field an error for the in-flight request, anything else its reply.
func (b *Base) process(pkt schema.Packet, onNotify, onError func(schema.Packet) bool) bool {
	switch pkt.Kind() {
	case schema.KindNotification:
		if onNotify != nil && onNotify(pkt) {
			return true
		}
		b.log.Debug("rdp notification unhandled", "type", pkt.Type)
		return false
	case schema.KindError:
		actorErr := pkt.ActorError()
		if b.settleHead(schema.Packet{}, actorErr) {
			b.log.Debug("rdp request failed", "code", pkt.Error, "message", pkt.Message)
			return true
		}
		if onError != nil {
			return onError(pkt)
		}
		return false
	default:
		return b.settleHead(pkt, nil)
	}
}

// ProcessCommand applies the shared classification with no actor-specific hooks.
func (b *Base) ProcessCommand(pkt schema.Packet) bool {
	return b.process(pkt, nil, nil)
}

func (b *Base) fail(err error) {
	b.mu.Lock()
	pending := b.queue
	b.queue = nil
	b.inFlight = false
	b.mu.Unlock()
	for _, call := range pending {
		call.Error = err
	}
	settle(pending)
}

func settle(calls []*Call) {
	for _, call := range calls {
		call.done()
	}
}
