package core

import (
	"context"
	"sync"
)

// resumeGate is open while the thread is paused. Breakpoint edits wait on it
// so they never race a pause or resume in flight.
type resumeGate struct {
	mu     sync.Mutex
	ch     chan struct{}
	paused bool
	err    error
}

func newResumeGate() *resumeGate {
	return &resumeGate{ch: make(chan struct{})}
}

// reset closes the gate when the thread resumes.
func (g *resumeGate) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil || !g.paused {
		return
	}
	g.paused = false
	g.ch = make(chan struct{})
}

// resolve opens the gate when the thread pauses.
func (g *resumeGate) resolve() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil || g.paused {
		return
	}
	g.paused = true
	close(g.ch)
}

// fail opens the gate for good; every wait returns err.
func (g *resumeGate) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return
	}
	g.err = err
	if !g.paused {
		close(g.ch)
	}
	g.paused = false
}

func (g *resumeGate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

func (g *resumeGate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
