package rdp

import (
	"context"
	"errors"
	"testing"

	"pkt.systems/ffdebug/schema"
)

func TestRequestsSettleInQueueOrder(t *testing.T) {
	d, w := newTestDispatcher()
	a := newGripActor(d)("obj1")
	d.AddActor(a)

	c1 := a.Go(schema.Request{"type": "one"})
	c2 := a.Go(schema.Request{"type": "two"})
	c3 := a.Go(schema.Request{"type": "three"})

	w.expect(t, "obj1", "one")
	if got := w.count(); got != 1 {
		t.Fatalf("expected one request on the wire, got %d", got)
	}

	inject(t, d, `{"from":"obj1","type":"propertyChange"}`)
	select {
	case <-c1.Done:
		t.Fatalf("notification must not settle a request")
	default:
	}

	inject(t, d, `{"from":"obj1","n":1}`)
	w.expect(t, "obj1", "two")
	inject(t, d, `{"from":"obj1","type":"propertyChange"}`)
	inject(t, d, `{"from":"obj1","n":2}`)
	w.expect(t, "obj1", "three")
	inject(t, d, `{"from":"obj1","n":3}`)

	for i, call := range []*Call{c1, c2, c3} {
		pkt, err := call.Wait(context.Background())
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		var body struct {
			N int `json:"n"`
		}
		if err := pkt.Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.N != i+1 {
			t.Fatalf("call %d settled with reply %d", i+1, body.N)
		}
	}
}

func TestErrorRejectsOnlyHead(t *testing.T) {
	d, w := newTestDispatcher()
	a := newGripActor(d)("obj1")
	d.AddActor(a)

	c1 := a.Go(schema.Request{"type": "one"})
	c2 := a.Go(schema.Request{"type": "two"})
	w.expect(t, "obj1", "one")
	inject(t, d, `{"from":"obj1","error":"noSuchActor","message":"gone"}`)
	w.expect(t, "obj1", "two")
	inject(t, d, `{"from":"obj1","ok":true}`)

	_, err := c1.Wait(context.Background())
	var actorErr *schema.ActorError
	if !errors.As(err, &actorErr) || actorErr.Code != "noSuchActor" || !errors.Is(err, schema.ErrActor) {
		t.Fatalf("expected actor error, got %v", err)
	}
	if len(actorErr.Body) == 0 {
		t.Fatalf("expected error body to be kept")
	}
	if _, err := c2.Wait(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
}

func TestSendBypassesQueue(t *testing.T) {
	d, w := newTestDispatcher()
	a := newGripActor(d)("obj1")
	d.AddActor(a)

	a.Go(schema.Request{"type": "one"})
	w.expect(t, "obj1", "one")
	if err := a.Send(schema.Request{"type": "ping"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	w.expect(t, "obj1", "ping")
}

func TestDispatchDropsUnroutable(t *testing.T) {
	d, _ := newTestDispatcher()
	var diags []string
	d.OnDiagnostic(func(msg string) { diags = append(diags, msg) })
	inject(t, d, `{"from":"nobody","x":1}`)
	d.Dispatch([]byte("not json"))
	if len(diags) != 2 {
		t.Fatalf("expected two diagnostics, got %v", diags)
	}
}

func TestExecuteOnceDeregisters(t *testing.T) {
	d, w := newTestDispatcher()
	done := async(func() ([]Property, error) {
		return executeOnce(d, "obj9", newGripActor(d), func(g *GripActor) ([]Property, error) {
			return g.Properties(context.Background())
		})
	})
	w.expect(t, "obj9", "prototypeAndProperties")
	if _, ok := d.Lookup("obj9"); !ok {
		t.Fatalf("expected actor registered during the operation")
	}
	inject(t, d, `{"from":"obj9","error":"noSuchActor"}`)
	if _, err := await(t, done); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := d.Lookup("obj9"); ok {
		t.Fatalf("expected actor deregistered after failure")
	}
}

func TestAcquireSharesLiveActor(t *testing.T) {
	d, _ := newTestDispatcher()
	a1, release1 := acquire(d, "src1", newSourceActor(d))
	a2, release2 := acquire(d, "src1", newSourceActor(d))
	if a1 != a2 {
		t.Fatalf("expected shared actor")
	}
	release1()
	if _, ok := d.Lookup("src1"); !ok {
		t.Fatalf("expected actor kept while held")
	}
	release2()
	if _, ok := d.Lookup("src1"); ok {
		t.Fatalf("expected actor released")
	}
}

func TestCloseFailsPendingAndRefusesNew(t *testing.T) {
	d, w := newTestDispatcher()
	a := newGripActor(d)("obj1")
	d.AddActor(a)
	c1 := a.Go(schema.Request{"type": "one"})
	w.expect(t, "obj1", "one")
	d.Close(nil)
	if _, err := c1.Wait(context.Background()); !errors.Is(err, schema.ErrStopping) {
		t.Fatalf("expected ErrStopping, got %v", err)
	}
	if _, err := a.Request(context.Background(), schema.Request{"type": "two"}); !errors.Is(err, schema.ErrStopping) {
		t.Fatalf("expected ErrStopping for new request, got %v", err)
	}
}

// sendFunc adapts a function to Sender.
type sendFunc func(body []byte) error

func (f sendFunc) Send(body []byte) error { return f(body) }

func TestWriteRunsOutsideActorLock(t *testing.T) {
	var a *GripActor
	var d *Dispatcher
	writes := make(chan bool, 4)
	d = NewDispatcher(sendFunc(func(body []byte) error {
		writes <- a.busy()
		return nil
	}), nil)
	a = newGripActor(d)("obj1")
	d.AddActor(a)

	first := async(func() (*Call, error) { return a.Go(schema.Request{"type": "one"}), nil })
	call, _ := await(t, first)
	if busy := <-writes; !busy {
		t.Fatalf("expected the head to be claimed while it is written")
	}
	a.Go(schema.Request{"type": "two"})

	settled := async(func() (bool, error) {
		inject(t, d, `{"from":"obj1","n":1}`)
		return true, nil
	})
	await(t, settled)
	<-writes
	if _, err := call.Wait(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}
}

func TestFailedWriteReleasesNextRequest(t *testing.T) {
	w := newWire()
	fail := true
	d := NewDispatcher(sendFunc(func(body []byte) error {
		if fail {
			fail = false
			return errors.New("broken pipe")
		}
		return w.Send(body)
	}), nil)
	a := newGripActor(d)("obj1")
	d.AddActor(a)

	c1 := a.Go(schema.Request{"type": "one"})
	if _, err := c1.Wait(context.Background()); err == nil {
		t.Fatalf("expected write failure to settle the call")
	}
	c2 := a.Go(schema.Request{"type": "two"})
	w.expect(t, "obj1", "two")
	inject(t, d, `{"from":"obj1"}`)
	if _, err := c2.Wait(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
}
