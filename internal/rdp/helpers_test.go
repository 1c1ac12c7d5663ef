package rdp

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pkt.systems/ffdebug/schema"
)

const waitTimeout = 2 * time.Second

// wire records outbound packets in place of a connection.
type wire struct {
	mu     sync.Mutex
	sent   []map[string]any
	frames chan map[string]any
}

func newWire() *wire {
	return &wire{frames: make(chan map[string]any, 64)}
}

func (w *wire) Send(body []byte) error {
	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	w.mu.Lock()
	w.sent = append(w.sent, req)
	w.mu.Unlock()
	w.frames <- req
	return nil
}

func (w *wire) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}

func (w *wire) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case req := <-w.frames:
		return req
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for outbound packet")
		return nil
	}
}

func (w *wire) expect(t *testing.T, to, typ string) map[string]any {
	t.Helper()
	req := w.next(t)
	if req["to"] != to || req["type"] != typ {
		t.Fatalf("expected %s to %s, got %+v", typ, to, req)
	}
	return req
}

func newTestDispatcher() (*Dispatcher, *wire) {
	w := newWire()
	return NewDispatcher(w, nil), w
}

func inject(t *testing.T, d *Dispatcher, body string) {
	t.Helper()
	if !json.Valid([]byte(body)) {
		t.Fatalf("invalid test packet %s", body)
	}
	d.Dispatch([]byte(body))
}

// recorder is a Listener that keeps everything it is told.
type recorder struct {
	mu       sync.Mutex
	outputs  []string
	cats     []schema.OutputCategory
	pauses   []Pause
	resumed  int
	sources  []Source
	contexts chan *ContextActor
	fatal    chan error
}

func newRecorder() *recorder {
	return &recorder{
		contexts: make(chan *ContextActor, 4),
		fatal:    make(chan error, 4),
	}
}

func (r *recorder) OnOutput(category schema.OutputCategory, text string) {
	r.mu.Lock()
	r.cats = append(r.cats, category)
	r.outputs = append(r.outputs, text)
	r.mu.Unlock()
}

func (r *recorder) OnContext(ctx *ContextActor) { r.contexts <- ctx }

func (r *recorder) OnPaused(p Pause) {
	r.mu.Lock()
	r.pauses = append(r.pauses, p)
	r.mu.Unlock()
}

func (r *recorder) OnResumed() {
	r.mu.Lock()
	r.resumed++
	r.mu.Unlock()
}

func (r *recorder) OnNewSource(src Source) {
	r.mu.Lock()
	r.sources = append(r.sources, src)
	r.mu.Unlock()
}

func (r *recorder) OnFatal(err error) { r.fatal <- err }

func (r *recorder) snapshot() ([]string, []schema.OutputCategory, []Pause, int, []Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outputs...),
		append([]schema.OutputCategory(nil), r.cats...),
		append([]Pause(nil), r.pauses...),
		r.resumed,
		append([]Source(nil), r.sources...)
}

type result[T any] struct {
	val T
	err error
}

func async[T any](fn func() (T, error)) <-chan result[T] {
	ch := make(chan result[T], 1)
	go func() {
		v, err := fn()
		ch <- result[T]{val: v, err: err}
	}()
	return ch
}

func await[T any](t *testing.T, ch <-chan result[T]) (T, error) {
	t.Helper()
	select {
	case r := <-ch:
		return r.val, r.err
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for result")
		var zero T
		return zero, nil
	}
}
