package rdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/ffdebug/internal/urlmap"
	"pkt.systems/ffdebug/schema"
)

// EnvPrefix marks a variables reference naming an environment actor rather
// than an object grip.
const EnvPrefix = "env:"

// Resume limits for stepping.
const (
	StepOver = "next"
	StepIn   = "step"
	StepOut  = "finish"
)

// evalAbortCodes reject a pending evaluation instead of the queue head.
var evalAbortCodes = map[string]bool{
	"unknownFrame": true,
	"notDebuggee":  true,
	"wrongState":   true,
}

// EvalResult is a formatted evaluation outcome. Actor is set when the value
// is a remote object.
type EvalResult struct {
	Display string
	Actor   string
}

// Frame is one stack frame.
type Frame struct {
	Actor  string
	Depth  int
	Name   string
	URL    string
	Line   int
	Column int
}

// ScopeRef is one environment of a frame's scope chain.
type ScopeRef struct {
	Name string
	Ref  string
}

type evalWaiter struct {
	once   sync.Once
	done   chan struct{}
	result EvalResult
	err    error
}

func (w *evalWaiter) finish(result EvalResult, err error) {
	w.once.Do(func() {
		w.result, w.err = result, err
		close(w.done)
	})
}

// ContextActor controls one thread: pause and resume, breakpoints,
// evaluation and inspection.
type ContextActor struct {
	Base
	resolver urlmap.Resolver
	listener Listener

	evalMu sync.Mutex
	eval   *evalWaiter
	// evalCycles counts clientEvaluate requests whose resumed/paused pair
	// has not arrived yet, including ones whose caller gave up.
	evalCycles int
}

// NewContextActor constructs a thread proxy. Register it before Start.
func NewContextActor(d *Dispatcher, name string, resolver urlmap.Resolver, listener Listener) *ContextActor {
	if listener == nil {
		listener = nopListener{}
	}
	a := &ContextActor{resolver: resolver, listener: listener}
	a.bind(d, name)
	return a
}

// Start attaches to the thread and publishes the sources it already knows.
func (a *ContextActor) Start() {
	if err := a.Send(schema.Request{"type": "attach"}); err != nil {
		a.listener.OnFatal(fmt.Errorf("attach thread %s: %w", a.name, err))
		return
	}
	go a.loadSources()
}

func (a *ContextActor) loadSources() {
	pkt, err := a.Request(context.Background(), schema.Request{"type": "sources"})
	if err != nil {
		a.log.Debug("rdp sources request failed", "err", err)
		return
	}
	var reply struct {
		Sources []schema.SourceForm `json:"sources"`
	}
	if err := pkt.Decode(&reply); err != nil {
		a.log.Warn("rdp sources reply dropped", "err", err)
		return
	}
	for _, src := range reply.Sources {
		a.publishSource(src)
	}
}

func (a *ContextActor) ProcessCommand(pkt schema.Packet) bool {
	// A queued request on the wire owns any error; only an idle queue lets
	// an abort code reach the evaluation.
	if pkt.Kind() == schema.KindError && evalAbortCodes[pkt.Error] && !a.busy() {
		if a.abortEval(pkt.ActorError()) {
			return true
		}
	}
	return a.process(pkt, a.notify, nil)
}

func (a *ContextActor) notify(pkt schema.Packet) bool {
	switch pkt.Type {
	case "paused":
		var body schema.PausedPacket
		if err := pkt.Decode(&body); err != nil {
			a.log.Warn("rdp paused packet dropped", "err", err)
			return true
		}
		if body.Why.Type == WhyClientEvaluated {
			a.completeEval(formatReturnValue(body.Why.FrameFinished))
			return true
		}
		a.clearEvalCycles()
		a.listener.OnPaused(Pause{Reason: body.Why.Type, Actors: body.Why.Actors, Frame: body.Frame})
		return true
	case "resumed":
		// Evaluation resumes the thread briefly; that is not a user resume.
		if !a.evalRunning() {
			a.listener.OnResumed()
		}
		return true
	case "newSource":
		var body struct {
			Source schema.SourceForm `json:"source"`
		}
		if err := pkt.Decode(&body); err != nil {
			a.log.Warn("rdp newSource dropped", "err", err)
			return true
		}
		a.publishSource(body.Source)
		return true
	case "newGlobal":
		return true
	}
	return false
}

func (a *ContextActor) publishSource(src schema.SourceForm) {
	if src.URL == "" || a.resolver == nil {
		return
	}
	path, ok := a.resolver.ToPath(src.URL)
	if !ok {
		a.log.Trace("rdp source outside web root", "url", src.URL)
		return
	}
	a.listener.OnNewSource(Source{Path: path, URL: src.URL, Actor: src.Actor})
}

// Resume continues execution. limit is empty or one of StepOver, StepIn or
// StepOut. The thread confirms with a resumed notification.
func (a *ContextActor) Resume(limit string) error {
	req := schema.Request{"type": "resume"}
	if limit != "" {
		req["resumeLimit"] = map[string]any{"type": limit}
	}
	return a.Send(req)
}

// Interrupt pauses a running thread; it answers with a paused notification.
func (a *ContextActor) Interrupt() error {
	return a.Send(schema.Request{"type": "interrupt"})
}

// AddBreakpoints places one breakpoint per line in the source. Placement
// failures are reported per line; only shutdown and ctx errors fail the call.
func (a *ContextActor) AddBreakpoints(ctx context.Context, sourceID string, lines []int) ([]BreakpointResult, error) {
	return executeOnce(a.d, sourceID, newSourceActor(a.d), func(src *SourceActor) ([]BreakpointResult, error) {
		calls := make([]*Call, len(lines))
		for i, line := range lines {
			calls[i] = src.SetBreakpoint(line)
		}
		out := make([]BreakpointResult, len(lines))
		for i, call := range calls {
			line := lines[i]
			pkt, err := call.Wait(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if stopErr := a.d.Err(); stopErr != nil {
					return nil, stopErr
				}
				out[i] = breakpointFailure(line, err)
				continue
			}
			var reply schema.SetBreakpointReply
			if err := pkt.Decode(&reply); err != nil {
				out[i] = breakpointFailure(line, err)
				continue
			}
			res := BreakpointResult{ID: reply.Actor, Line: line, Verified: !reply.IsPending}
			if reply.ActualLocation != nil && reply.ActualLocation.Line > 0 {
				res.Line = reply.ActualLocation.Line
			}
			out[i] = res
		}
		return out, nil
	})
}

// RemoveBreakpoints deletes breakpoints one at a time in order.
func (a *ContextActor) RemoveBreakpoints(ctx context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		_, err := executeOnce(a.d, id, newBreakpointActor(a.d), func(bp *BreakpointActor) (struct{}, error) {
			return struct{}{}, bp.Delete(ctx)
		})
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if stopErr := a.d.Err(); stopErr != nil {
			return stopErr
		}
		errs = append(errs, fmt.Errorf("delete breakpoint %s: %w", id, err))
	}
	return errors.Join(errs...)
}

// Evaluate runs expr in the frame at depth frame. Only one evaluation is
// outstanding per thread; a newer call fails the older with
// schema.ErrEvalSuperseded.
func (a *ContextActor) Evaluate(ctx context.Context, expr string, frame int) (EvalResult, error) {
	frames, err := a.frames(ctx, frame, 1)
	if err != nil {
		return EvalResult{}, err
	}
	if len(frames) == 0 {
		return EvalResult{}, fmt.Errorf("no frame at depth %d", frame)
	}
	w := &evalWaiter{done: make(chan struct{})}
	a.evalMu.Lock()
	prev := a.eval
	a.eval = w
	a.evalCycles++
	a.evalMu.Unlock()
	if prev != nil {
		prev.finish(EvalResult{}, schema.ErrEvalSuperseded)
	}
	if err := a.Send(schema.Request{
		"type":       "clientEvaluate",
		"frame":      frames[0].Actor,
		"expression": expr,
	}); err != nil {
		a.evalMu.Lock()
		a.evalCycles--
		a.evalMu.Unlock()
		a.dropEval(w)
		return EvalResult{}, err
	}
	select {
	case <-ctx.Done():
		a.dropEval(w)
		return EvalResult{}, ctx.Err()
	case <-w.done:
		return w.result, w.err
	}
}

// evalRunning reports whether an evaluation cycle is under way, so the
// thread's resumed notification is not a user resume.
func (a *ContextActor) evalRunning() bool {
	a.evalMu.Lock()
	defer a.evalMu.Unlock()
	return a.evalCycles > 0
}

// completeEval ends one evaluation cycle and hands its value to the waiter,
// if the caller is still waiting.
func (a *ContextActor) completeEval(result EvalResult) {
	a.evalMu.Lock()
	if a.evalCycles > 0 {
		a.evalCycles--
	}
	w := a.eval
	a.eval = nil
	a.evalMu.Unlock()
	if w != nil {
		w.finish(result, nil)
	}
}

// abortEval fails the latest evaluation, whose request the thread refused
// without starting a cycle. It reports whether an evaluation was outstanding.
func (a *ContextActor) abortEval(err error) bool {
	a.evalMu.Lock()
	if a.evalCycles == 0 {
		a.evalMu.Unlock()
		return false
	}
	a.evalCycles--
	w := a.eval
	a.eval = nil
	a.evalMu.Unlock()
	if w != nil {
		w.finish(EvalResult{}, err)
	}
	return true
}

func (a *ContextActor) clearEvalCycles() {
	a.evalMu.Lock()
	a.evalCycles = 0
	a.evalMu.Unlock()
}

// finishEval settles the pending evaluation and reports whether one existed.
func (a *ContextActor) finishEval(result EvalResult, err error) bool {
	a.evalMu.Lock()
	w := a.eval
	a.eval = nil
	a.evalMu.Unlock()
	if w == nil {
		return false
	}
	w.finish(result, err)
	return true
}

func (a *ContextActor) dropEval(w *evalWaiter) {
	a.evalMu.Lock()
	if a.eval == w {
		a.eval = nil
	}
	a.evalMu.Unlock()
}

func (a *ContextActor) fail(err error) {
	a.Base.fail(err)
	a.finishEval(EvalResult{}, err)
}

// StackTrace returns count frames starting at depth start; count <= 0
// returns every remaining frame.
func (a *ContextActor) StackTrace(ctx context.Context, start, count int) ([]Frame, error) {
	forms, err := a.frames(ctx, start, count)
	if err != nil {
		return nil, err
	}
	out := make([]Frame, 0, len(forms))
	for _, f := range forms {
		out = append(out, Frame{
			Actor:  f.Actor,
			Depth:  f.Depth,
			Name:   frameName(f),
			URL:    f.Where.SourceURL(),
			Line:   f.Where.Line,
			Column: f.Where.Column,
		})
	}
	return out, nil
}

// Scopes walks the frame's environment chain from innermost to outermost.
func (a *ContextActor) Scopes(ctx context.Context, frame int) ([]ScopeRef, error) {
	frames, err := a.frames(ctx, frame, 1)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frame at depth %d", frame)
	}
	var out []ScopeRef
	for env := frames[0].Environment; env != nil; env = env.Parent {
		name := "Closure"
		if len(out) == 0 {
			name = "Local"
		}
		if env.Parent == nil {
			name = "Global"
		}
		out = append(out, ScopeRef{Name: name, Ref: EnvPrefix + env.Actor})
	}
	return out, nil
}

// Variables expands an environment reference (EnvPrefix) or an object actor.
func (a *ContextActor) Variables(ctx context.Context, ref string) ([]Property, error) {
	if env, ok := strings.CutPrefix(ref, EnvPrefix); ok {
		if env == "" {
			return nil, schema.ErrInvalidReference
		}
		return executeOnce(a.d, env, newEnvironmentActor(a.d), func(e *EnvironmentActor) ([]Property, error) {
			return e.Bindings(ctx)
		})
	}
	if ref == "" {
		return nil, schema.ErrInvalidReference
	}
	return executeOnce(a.d, ref, newGripActor(a.d), func(g *GripActor) ([]Property, error) {
		return g.Properties(ctx)
	})
}

func (a *ContextActor) frames(ctx context.Context, start, count int) ([]schema.FrameForm, error) {
	req := schema.Request{"type": "frames", "start": start}
	if count > 0 {
		req["count"] = count
	}
	pkt, err := a.Request(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("frames: %w", err)
	}
	var reply schema.FramesReply
	if err := pkt.Decode(&reply); err != nil {
		return nil, err
	}
	return reply.Frames, nil
}

func frameName(f schema.FrameForm) string {
	if name := f.Callee.Label(); name != "" {
		return name
	}
	if f.Type == "" || f.Type == "call" {
		return "(anonymous)"
	}
	return "(" + f.Type + ")"
}

// formatReturnValue renders how a client evaluation finished.
func formatReturnValue(ff *schema.FrameFinished) EvalResult {
	switch {
	case ff == nil:
		return EvalResult{Display: "undefined"}
	case ff.Terminated:
		return EvalResult{Display: "(terminated)"}
	case !ff.Throw.IsZero():
		return EvalResult{Display: "(error: " + ff.Throw.Display() + ")", Actor: ff.Throw.ActorID()}
	case ff.Return.IsZero():
		return EvalResult{Display: "undefined"}
	}
	return EvalResult{Display: ff.Return.Display(), Actor: ff.Return.ActorID()}
}
