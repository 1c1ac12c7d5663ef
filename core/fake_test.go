package core

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"pkt.systems/ffdebug/internal/transport"
	"pkt.systems/ffdebug/schema"
)

const waitTimeout = 3 * time.Second

// fakeBrowser is the server end of a remote-debugging connection driven by
// the test.
type fakeBrowser struct {
	t      *testing.T
	server net.Conn
	client net.Conn
	reqs   chan map[string]any
	closed chan struct{}
}

func newFakeBrowser(t *testing.T) *fakeBrowser {
	t.Helper()
	client, server := net.Pipe()
	f := &fakeBrowser{
		t:      t,
		server: server,
		client: client,
		reqs:   make(chan map[string]any, 64),
		closed: make(chan struct{}),
	}
	go f.readLoop()
	t.Cleanup(func() { _ = server.Close() })
	return f
}

func (f *fakeBrowser) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	return f.client, nil
}

func (f *fakeBrowser) readLoop() {
	defer close(f.closed)
	var dec transport.Decoder
	buf := make([]byte, 4096)
	for {
		n, err := f.server.Read(buf)
		if n > 0 {
			bodies, ferr := dec.Feed(buf[:n])
			for _, body := range bodies {
				var req map[string]any
				if json.Unmarshal(body, &req) == nil {
					f.reqs <- req
				}
			}
			if ferr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (f *fakeBrowser) send(body string) {
	f.t.Helper()
	if !json.Valid([]byte(body)) {
		f.t.Fatalf("invalid packet %s", body)
	}
	if _, err := f.server.Write(transport.Encode([]byte(body))); err != nil {
		f.t.Fatalf("fake browser write: %v", err)
	}
}

func (f *fakeBrowser) expect(to, typ string) map[string]any {
	f.t.Helper()
	select {
	case req := <-f.reqs:
		if req["to"] != to || req["type"] != typ {
			f.t.Fatalf("expected %s to %s, got %+v", typ, to, req)
		}
		return req
	case <-time.After(waitTimeout):
		f.t.Fatalf("timed out waiting for %s to %s", typ, to)
		return nil
	}
}

func (f *fakeBrowser) expectQuiet(d time.Duration) {
	f.t.Helper()
	select {
	case req := <-f.reqs:
		f.t.Fatalf("unexpected request %+v", req)
	case <-time.After(d):
	}
}

// bringUp plays the browser side of tab selection and thread attach for a
// tab at url, leaving the thread paused on attach.
func (f *fakeBrowser) bringUp(url string) {
	f.t.Helper()
	f.send(`{"from":"root","applicationType":"browser","traits":{}}`)
	f.expect("root", "listTabs")
	f.send(`{"from":"root","tabs":[{"actor":"tab1","url":"` + url + `","title":"App","consoleActor":"console1"}]}`)
	f.expect("tab1", "attach")
	f.expect("console1", "startListeners")
	f.send(`{"from":"console1","startedListeners":["PageError","ConsoleAPI"]}`)
	f.expect("console1", "getCachedMessages")
	f.send(`{"from":"console1","messages":[{"_type":"ConsoleAPI","level":"log","arguments":["hello"]}]}`)
	f.send(`{"from":"tab1","type":"tabAttached","threadActor":"thread1"}`)
	f.expect("thread1", "attach")
	f.expect("thread1", "sources")
	f.send(`{"from":"thread1","type":"paused","why":{"type":"attached"}}`)
}

// sinkRecorder is an EventSink that queues every event.
type sinkRecorder struct {
	mu          sync.Mutex
	outputs     []schema.OutputEvent
	initialized chan schema.InitializedEvent
	stopped     chan schema.StoppedEvent
	breakpoints chan schema.BreakpointEvent
	terminated  chan schema.TerminatedEvent
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{
		initialized: make(chan schema.InitializedEvent, 4),
		stopped:     make(chan schema.StoppedEvent, 16),
		breakpoints: make(chan schema.BreakpointEvent, 16),
		terminated:  make(chan schema.TerminatedEvent, 4),
	}
}

func (r *sinkRecorder) OnInitialized(ev schema.InitializedEvent) { r.initialized <- ev }
func (r *sinkRecorder) OnStopped(ev schema.StoppedEvent)         { r.stopped <- ev }
func (r *sinkRecorder) OnBreakpoint(ev schema.BreakpointEvent)   { r.breakpoints <- ev }
func (r *sinkRecorder) OnTerminated(ev schema.TerminatedEvent)   { r.terminated <- ev }

func (r *sinkRecorder) OnOutput(ev schema.OutputEvent) {
	r.mu.Lock()
	r.outputs = append(r.outputs, ev)
	r.mu.Unlock()
}

func (r *sinkRecorder) output() []schema.OutputEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.OutputEvent(nil), r.outputs...)
}

func receive[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func noEvent[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %+v", what, v)
	case <-time.After(50 * time.Millisecond):
	}
}

type outcome[T any] struct {
	val T
	err error
}

func async[T any](fn func() (T, error)) <-chan outcome[T] {
	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn()
		ch <- outcome[T]{val: v, err: err}
	}()
	return ch
}

func asyncErr(fn func() error) <-chan outcome[struct{}] {
	return async(func() (struct{}, error) { return struct{}{}, fn() })
}
