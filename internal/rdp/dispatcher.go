// Package rdp implements the client side of the browser remote-debugging
// protocol: actor proxies, per-actor request queues and packet routing.
package rdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"pkt.systems/ffdebug/schema"
	"pkt.systems/pslog"
)

// Sender writes one outbound packet body to the wire.
type Sender interface {
	Send(body []byte) error
}

// Actor is a client-side proxy for one named browser-side actor.
type Actor interface {
	Name() string
	// ProcessCommand handles one inbound packet and reports whether it was consumed.
	ProcessCommand(pkt schema.Packet) bool
}

// failer is implemented by actors holding waits that must end at shutdown.
type failer interface {
	fail(err error)
}

type registration struct {
	actor Actor
	refs  int
}

// Dispatcher routes inbound packets to actors by their from field and is the
// single path from actors to the wire.
type Dispatcher struct {
	out Sender
	log pslog.Logger

	mu      sync.Mutex
	actors  map[string]*registration
	stopErr error
	diag    func(msg string)
}

// NewDispatcher constructs a Dispatcher writing to out.
func NewDispatcher(out Sender, logger pslog.Logger) *Dispatcher {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Dispatcher{
		out:    out,
		log:    logger,
		actors: make(map[string]*registration),
	}
}

// OnDiagnostic registers a sink for protocol-level diagnostics.
func (d *Dispatcher) OnDiagnostic(fn func(msg string)) {
	d.mu.Lock()
	d.diag = fn
	d.mu.Unlock()
}

// AddActor registers a long-lived actor, replacing any previous holder of the name.
func (d *Dispatcher) AddActor(a Actor) {
	d.mu.Lock()
	d.actors[a.Name()] = &registration{actor: a, refs: 1}
	count := len(d.actors)
	d.mu.Unlock()
	d.log.Debug("rdp actor added", "actor", a.Name(), "actors", count)
}

// RemoveActor deregisters a if it still holds its name.
func (d *Dispatcher) RemoveActor(a Actor) {
	d.mu.Lock()
	if reg := d.actors[a.Name()]; reg != nil && reg.actor == a {
		delete(d.actors, a.Name())
	}
	count := len(d.actors)
	d.mu.Unlock()
	d.log.Debug("rdp actor removed", "actor", a.Name(), "actors", count)
}

// Lookup returns the actor registered under name.
func (d *Dispatcher) Lookup(name string) (Actor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reg := d.actors[name]
	if reg == nil {
		return nil, false
	}
	return reg.actor, true
}

// Len returns the number of registered actors.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.actors)
}

// Dispatch parses one frame body and hands it to the actor named by from.
// Unparseable and unroutable packets are logged and dropped.
func (d *Dispatcher) Dispatch(body []byte) {
	pkt, err := schema.ParsePacket(body)
	if err != nil {
		d.diagnose("rdp packet dropped", "err", err)
		return
	}
	actor, ok := d.Lookup(pkt.From)
	if !ok {
		d.diagnose("rdp packet unroutable", "from", pkt.From, "kind", pkt.Kind().String(), "err", schema.ErrUnroutable)
		return
	}
	if !actor.ProcessCommand(pkt) {
		d.diagnose("rdp packet unhandled", "from", pkt.From, "kind", pkt.Kind().String(), "type", pkt.Type, "error", pkt.Error)
	}
}

// Relay stamps to (when unset) and writes req to the wire.
func (d *Dispatcher) Relay(to string, req schema.Request) error {
	d.mu.Lock()
	stopErr := d.stopErr
	d.mu.Unlock()
	if stopErr != nil {
		return stopErr
	}
	if req.To() == "" {
		req["to"] = to
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request to %s: %w", req.Command(), to, err)
	}
	return d.out.Send(body)
}

// Close fails every outstanding wait with err and refuses further requests.
func (d *Dispatcher) Close(err error) {
	if err == nil {
		err = schema.ErrStopping
	}
	d.mu.Lock()
	if d.stopErr != nil {
		d.mu.Unlock()
		return
	}
	d.stopErr = err
	actors := make([]Actor, 0, len(d.actors))
	for _, reg := range d.actors {
		actors = append(actors, reg.actor)
	}
	d.mu.Unlock()
	for _, a := range actors {
		if f, ok := a.(failer); ok {
			f.fail(err)
		}
	}
	d.log.Debug("rdp dispatcher closed", "actors", len(actors), "err", err)
}

// Err returns the terminal error once Close was called.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopErr
}

func (d *Dispatcher) diagnose(msg string, kv ...any) {
	d.log.Warn(msg, kv...)
	d.mu.Lock()
	fn := d.diag
	d.mu.Unlock()
	if fn != nil {
		fn(fmt.Sprintf("%s %v", msg, kv))
	}
}

// acquire registers a transient actor under name, or shares the live one of
// the same kind so requests to one browser actor stay on one queue. The
// returned release deregisters it once the last holder is done.
func acquire[A Actor](d *Dispatcher, name string, create func(name string) A) (A, func()) {
	d.mu.Lock()
	if reg := d.actors[name]; reg != nil {
		if existing, ok := reg.actor.(A); ok {
			reg.refs++
			d.mu.Unlock()
			return existing, func() { d.release(reg) }
		}
	}
	actor := create(name)
	reg := &registration{actor: actor, refs: 1}
	d.actors[name] = reg
	d.mu.Unlock()
	return actor, func() { d.release(reg) }
}

func (d *Dispatcher) release(reg *registration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reg.refs--
	if reg.refs > 0 {
		return
	}
	name := reg.actor.Name()
	if d.actors[name] == reg {
		delete(d.actors, name)
	}
}

// executeOnce runs op against a transient actor that exists only for that
// operation; the actor is deregistered however op returns.
func executeOnce[A Actor, T any](d *Dispatcher, name string, create func(name string) A, op func(A) (T, error)) (T, error) {
	actor, release := acquire(d, name, create)
	defer release()
	return op(actor)
}
