package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pkt.systems/ffdebug/internal/logx"
	"pkt.systems/ffdebug/internal/profile"
	"pkt.systems/ffdebug/internal/rdp"
	"pkt.systems/ffdebug/internal/transport"
	"pkt.systems/ffdebug/internal/urlmap"
	"pkt.systems/ffdebug/schema"
	"pkt.systems/pslog"
)

// errNotPaused is returned for operations that need a paused thread.
var errNotPaused = errors.New("thread is not paused")

// Session bridges one editor debug session to one browser tab. It is
// constructed per launch and ends at Disconnect or when the browser goes away.
type Session struct {
	id       string
	sink     EventSink
	log      pslog.Logger
	defaults schema.LaunchConfig
	dial     transport.DialFunc
	launcher BrowserLauncher

	gate    *resumeGate
	sources *sourceTable
	handles *handleTable
	bps     *breakpointSet
	// bpMu serializes everything that pauses, resumes or edits breakpoints.
	bpMu sync.Mutex

	mu                sync.Mutex
	cfg               schema.LaunchConfig
	resolver          urlmap.Resolver
	conn              *transport.Conn
	disp              *rdp.Dispatcher
	thread            *rdp.ContextActor
	browser           BrowserProcess
	tempProfile       string
	launched          bool
	configured        bool
	editInterrupt     bool
	lastPauseInternal bool
	cause             error

	attached   chan struct{}
	attachOnce sync.Once
	stopOnce   sync.Once
	done       chan struct{}
	runCtx     context.Context
	cancel     context.CancelFunc
}

// NewSession constructs an idle session.
func NewSession(deps SessionDeps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	sink := deps.EventSink
	if sink == nil {
		sink = nopSink{}
	}
	launcher := deps.Browser
	if launcher == nil {
		launcher = ExecLauncher{Logger: logger}
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       deps.ID,
		sink:     sink,
		log:      logx.WithSession(logger, deps.ID),
		defaults: deps.Defaults,
		dial:     deps.Dial,
		launcher: launcher,
		gate:     newResumeGate(),
		sources:  newSourceTable(nil),
		handles:  newHandleTable(),
		bps:      newBreakpointSet(),
		attached: make(chan struct{}),
		done:     make(chan struct{}),
		runCtx:   runCtx,
		cancel:   cancel,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Launch starts the browser when configured, connects, selects the target
// tab and attaches to its thread. It returns once the thread is attached and
// breakpoints can be configured.
func (s *Session) Launch(ctx context.Context, cfg schema.LaunchConfig) error {
	s.mu.Lock()
	if s.launched {
		s.mu.Unlock()
		return errors.New("session already launched")
	}
	s.launched = true
	s.mu.Unlock()

	cfg, err := schema.NormalizeLaunchConfig(cfg, s.defaults)
	if err != nil {
		return err
	}
	resolver, err := urlmap.Select(cfg.Program, cfg.WebRoot)
	if err != nil {
		return err
	}
	target, err := urlmap.TargetURL(cfg.Program, resolver)
	if err != nil {
		return err
	}
	ignore, err := compileIgnore(cfg.IgnoreSources)
	if err != nil {
		return err
	}
	s.sources.ignore = ignore
	s.mu.Lock()
	s.cfg = cfg
	s.resolver = resolver
	s.mu.Unlock()
	s.log.Info("session launch", "program", cfg.Program, "target", target, "addr", cfg.Address(), "spawn", cfg.RuntimeExecutable != "")

	if cfg.RuntimeExecutable != "" {
		if err := s.startBrowser(ctx, cfg, target); err != nil {
			s.shutdown(err)
			return err
		}
	}

	conn, err := transport.Dial(ctx, cfg.Address(), transport.DialOptions{
		Timeout: cfg.DialTimeout,
		Logger:  s.log,
		Dial:    s.dial,
	})
	if err != nil {
		s.shutdown(err)
		return err
	}
	disp := rdp.NewDispatcher(conn, s.log)
	if cfg.LogEnabled {
		disp.OnDiagnostic(func(msg string) {
			s.emitOutput(schema.OutputConsole, msg+"\n")
		})
	}
	s.mu.Lock()
	s.conn = conn
	s.disp = disp
	s.mu.Unlock()
	conn.OnDisconnect(s.onDisconnect)
	rdp.NewRootActor(disp, rdp.RootConfig{
		Target:   target,
		Resolver: resolver,
		Listener: sessionListener{s: s},
	})
	go func() {
		if err := conn.Serve(disp.Dispatch); err != nil {
			s.log.Warn("session connection failed", "err", err)
		}
	}()

	select {
	case <-s.attached:
	case <-s.done:
		return s.stopCause()
	case <-ctx.Done():
		s.shutdown(ctx.Err())
		return ctx.Err()
	}
	s.log.Info("session attached", "target", target)
	s.sink.OnInitialized(schema.InitializedEvent{SessionID: s.id})
	return nil
}

func (s *Session) startBrowser(ctx context.Context, cfg schema.LaunchConfig, target string) error {
	prefs, err := profile.ParsePrefs(cfg.ProfilePrefs)
	if err != nil {
		return fmt.Errorf("%w: %v", schema.ErrConfiguration, err)
	}
	data := profile.TemplateData{Port: cfg.Port, Prefs: prefs}
	dir := cfg.ProfileDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "ffdebug-profile-")
		if err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		s.mu.Lock()
		s.tempProfile = dir
		s.mu.Unlock()
		if err := profile.Populate(dir, cfg.ProfileSkel, data); err != nil {
			return fmt.Errorf("populate profile: %w", err)
		}
	} else {
		created, err := profile.Ensure(dir, cfg.ProfileSkel, data)
		if err != nil {
			return fmt.Errorf("prepare profile %s: %w", dir, err)
		}
		s.log.Debug("session profile ready", "dir", dir, "created", created)
	}
	proc, err := s.launcher.Launch(ctx, BrowserSpec{
		Executable: cfg.RuntimeExecutable,
		Args:       cfg.RuntimeArgs,
		ProfileDir: dir,
		Port:       cfg.Port,
		URL:        target,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.browser = proc
	s.mu.Unlock()
	return nil
}

// ConfigurationDone ends breakpoint configuration: the thread stays paused
// with an entry stop when stopOnEntry is set, and resumes otherwise.
func (s *Session) ConfigurationDone(ctx context.Context) error {
	thread, err := s.context()
	if err != nil {
		return err
	}
	s.bpMu.Lock()
	defer s.bpMu.Unlock()
	s.mu.Lock()
	already := s.configured
	s.configured = true
	stopOnEntry := s.cfg.StopOnEntry
	s.mu.Unlock()
	if already {
		return nil
	}
	if stopOnEntry {
		s.emitStopped(schema.StopEntry, "")
		return nil
	}
	if !s.gate.isPaused() {
		return nil
	}
	return s.resume(thread, "")
}

// SetBreakpoints replaces the breakpoints of path. Breakpoints for a source
// the browser has not reported yet are returned unverified and placed once
// it appears.
func (s *Session) SetBreakpoints(ctx context.Context, path string, lines []int) ([]schema.Breakpoint, error) {
	thread, err := s.context()
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)
	s.bpMu.Lock()
	defer s.bpMu.Unlock()
	adjusted := adjustLines(path, lines)
	gen := s.bps.begin(path)
	src, ok := s.sources.lookup(path)
	if !ok {
		out := s.bps.pending(path, adjusted, "source not loaded")
		if len(adjusted) > 0 {
			go s.placeDeferred(path, adjusted, gen)
		}
		return out, nil
	}
	return s.applyBreakpoints(ctx, thread, path, src, adjusted, nil)
}

// applyBreakpoints removes the current breakpoints of path and places lines.
// A running thread is interrupted for the edit and resumed afterwards unless
// something else paused it meanwhile. Callers hold bpMu.
func (s *Session) applyBreakpoints(ctx context.Context, thread *rdp.ContextActor, path string, src rdp.Source, lines []int, ids []int) (out []schema.Breakpoint, err error) {
	if !s.gate.isPaused() {
		s.mu.Lock()
		s.editInterrupt = true
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			internal := s.lastPauseInternal
			s.editInterrupt = false
			s.mu.Unlock()
			if internal && !errors.Is(err, schema.ErrStopping) {
				if resumeErr := s.resume(thread, ""); resumeErr != nil && err == nil {
					err = resumeErr
				}
			}
		}()
		if err := thread.Interrupt(); err != nil {
			return nil, err
		}
	}
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	if err := thread.RemoveBreakpoints(ctx, s.bps.take(path)); err != nil {
		if errors.Is(err, schema.ErrStopping) || ctx.Err() != nil {
			return nil, err
		}
		s.log.Warn("session breakpoint removal failed", "path", path, "err", err)
	}
	results, err := thread.AddBreakpoints(ctx, src.Actor, lines)
	if err != nil {
		return nil, err
	}
	out = s.bps.store(path, results, ids)
	s.log.Debug("session breakpoints set", "path", path, "source", src.Actor, "count", len(out))
	return out, nil
}

func (s *Session) placeDeferred(path string, lines []int, gen int) {
	src, err := s.sources.resolve(s.runCtx, path)
	if err != nil {
		return
	}
	thread, err := s.context()
	if err != nil {
		return
	}
	s.bpMu.Lock()
	defer s.bpMu.Unlock()
	if !s.bps.current(path, gen) {
		return
	}
	out, err := s.applyBreakpoints(s.runCtx, thread, path, src, lines, s.bps.ids(path))
	if err != nil {
		s.log.Warn("session deferred breakpoints failed", "path", path, "err", err)
		return
	}
	for _, bp := range out {
		s.sink.OnBreakpoint(schema.BreakpointEvent{SessionID: s.id, Reason: "changed", Breakpoint: bp})
	}
}

// StackTrace returns levels frames from startFrame; levels <= 0 returns all.
func (s *Session) StackTrace(ctx context.Context, startFrame, levels int) ([]schema.StackFrame, error) {
	thread, err := s.context()
	if err != nil {
		return nil, err
	}
	frames, err := thread.StackTrace(ctx, startFrame, levels)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	resolver := s.resolver
	s.mu.Unlock()
	out := make([]schema.StackFrame, 0, len(frames))
	for _, f := range frames {
		frame := schema.StackFrame{
			ID:     f.Depth,
			Name:   f.Name,
			URL:    f.URL,
			Line:   f.Line,
			Column: f.Column,
		}
		if path, ok := resolver.ToPath(f.URL); ok {
			frame.Path = path
		}
		out = append(out, frame)
	}
	return out, nil
}

// Scopes returns the scope chain of the frame at depth frameID.
func (s *Session) Scopes(ctx context.Context, frameID int) ([]schema.Scope, error) {
	thread, err := s.context()
	if err != nil {
		return nil, err
	}
	refs, err := thread.Scopes(ctx, frameID)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Scope, 0, len(refs))
	for _, ref := range refs {
		out = append(out, schema.Scope{Name: ref.Name, Reference: s.handles.alloc(ref.Ref)})
	}
	return out, nil
}

// Variables expands a reference handed out by Scopes, Variables or Evaluate.
func (s *Session) Variables(ctx context.Context, reference int) ([]schema.Variable, error) {
	thread, err := s.context()
	if err != nil {
		return nil, err
	}
	ref, ok := s.handles.lookup(reference)
	if !ok {
		return nil, fmt.Errorf("%w: %d", schema.ErrInvalidReference, reference)
	}
	props, err := thread.Variables(ctx, ref)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Variable, 0, len(props))
	for _, p := range props {
		out = append(out, schema.Variable{Name: p.Name, Value: p.Value, Reference: s.handles.alloc(p.Actor)})
	}
	return out, nil
}

// Evaluate runs expr in the frame at depth frameID. Evaluation failures are
// reported as the result text.
func (s *Session) Evaluate(ctx context.Context, expr string, frameID int) (schema.EvalResult, error) {
	thread, err := s.context()
	if err != nil {
		return schema.EvalResult{}, err
	}
	s.bpMu.Lock()
	defer s.bpMu.Unlock()
	res, err := thread.Evaluate(ctx, expr, frameID)
	if err != nil {
		if errors.Is(err, schema.ErrStopping) || ctx.Err() != nil {
			return schema.EvalResult{}, err
		}
		return schema.EvalResult{Result: "eval error: " + err.Error()}, nil
	}
	return schema.EvalResult{Result: res.Display, Reference: s.handles.alloc(res.Actor)}, nil
}

// Continue resumes the thread.
func (s *Session) Continue(ctx context.Context) error {
	return s.step("")
}

// Next steps over the current line.
func (s *Session) Next(ctx context.Context) error {
	return s.step(rdp.StepOver)
}

// StepIn steps into the next call.
func (s *Session) StepIn(ctx context.Context) error {
	return s.step(rdp.StepIn)
}

// StepOut runs until the current function returns.
func (s *Session) StepOut(ctx context.Context) error {
	return s.step(rdp.StepOut)
}

func (s *Session) step(limit string) error {
	thread, err := s.context()
	if err != nil {
		return err
	}
	s.bpMu.Lock()
	defer s.bpMu.Unlock()
	if !s.gate.isPaused() {
		return errNotPaused
	}
	return s.resume(thread, limit)
}

// Pause interrupts a running thread; a stopped event with reason pause follows.
func (s *Session) Pause(ctx context.Context) error {
	thread, err := s.context()
	if err != nil {
		return err
	}
	s.bpMu.Lock()
	defer s.bpMu.Unlock()
	if s.gate.isPaused() {
		return nil
	}
	return thread.Interrupt()
}

// Disconnect ends the session, stopping a browser it started.
func (s *Session) Disconnect(ctx context.Context) error {
	s.shutdown(nil)
	return nil
}

func (s *Session) resume(thread *rdp.ContextActor, limit string) error {
	s.gate.reset()
	s.handles.reset()
	return thread.Resume(limit)
}

func (s *Session) context() (*rdp.ContextActor, error) {
	select {
	case <-s.done:
		return nil, schema.ErrStopping
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thread == nil {
		return nil, schema.ErrNotReady
	}
	return s.thread, nil
}

func (s *Session) stopCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cause != nil {
		return s.cause
	}
	return schema.ErrStopping
}

func (s *Session) onDisconnect(err error) {
	if err != nil {
		s.log.Warn("session connection lost", "err", err)
	} else {
		s.log.Info("session connection closed")
	}
	s.shutdown(err)
}

// shutdown tears the session down once. Every outstanding wait fails with
// schema.ErrStopping and a terminated event is emitted.
func (s *Session) shutdown(cause error) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.cause = cause
		conn, disp, browser, tmp := s.conn, s.disp, s.browser, s.tempProfile
		s.mu.Unlock()

		s.cancel()
		if disp != nil {
			disp.Close(schema.ErrStopping)
		}
		s.gate.fail(schema.ErrStopping)
		s.sources.fail(schema.ErrStopping)
		if conn != nil {
			_ = conn.Close()
		}
		if browser != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*browserStopTimeout)
			if err := browser.Stop(ctx); err != nil {
				s.log.Warn("session browser stop failed", "err", err)
			}
			cancel()
		}
		if tmp != "" {
			if err := os.RemoveAll(tmp); err != nil {
				s.log.Warn("session profile cleanup failed", "dir", tmp, "err", err)
			}
		}
		s.log.Info("session terminated", "err", cause)
		s.sink.OnTerminated(schema.TerminatedEvent{SessionID: s.id, Err: cause})
		close(s.done)
	})
}

func (s *Session) emitStopped(reason schema.StopReason, description string) {
	s.sink.OnStopped(schema.StoppedEvent{
		SessionID:   s.id,
		Reason:      reason,
		ThreadID:    schema.ThreadID,
		Description: description,
	})
}

func (s *Session) emitOutput(category schema.OutputCategory, text string) {
	s.sink.OnOutput(schema.OutputEvent{SessionID: s.id, Category: category, Text: text})
}

func (s *Session) onPaused(p rdp.Pause) {
	s.mu.Lock()
	internal := p.Reason == rdp.WhyInterrupted && s.editInterrupt
	s.lastPauseInternal = internal
	configured := s.configured
	stopOnEntry := s.cfg.StopOnEntry
	thread := s.thread
	s.mu.Unlock()
	s.gate.resolve()

	switch p.Reason {
	case rdp.WhyAttached:
		first := false
		s.attachOnce.Do(func() {
			first = true
			close(s.attached)
		})
		if !first && configured && !stopOnEntry && thread != nil {
			if err := s.resume(thread, ""); err != nil {
				s.log.Warn("session resume after reattach failed", "err", err)
			}
		}
	case rdp.WhyInterrupted:
		if !internal {
			s.emitStopped(schema.StopPause, "")
		}
	case rdp.WhyBreakpoint:
		line := 0
		if p.Frame != nil {
			line = p.Frame.Where.Line
		}
		for _, bp := range s.bps.verify(p.Actors, line) {
			s.sink.OnBreakpoint(schema.BreakpointEvent{SessionID: s.id, Reason: "changed", Breakpoint: bp})
		}
		s.emitStopped(schema.StopBreakpoint, "")
	case rdp.WhyResumeLimit:
		s.emitStopped(schema.StopStep, "")
	case rdp.WhyDebugger:
		s.emitStopped(schema.StopDebugger, "")
	default:
		s.emitStopped(schema.StopDebugger, p.Reason)
	}
}

// sessionListener adapts the actor tree's notifications onto the session.
type sessionListener struct {
	s *Session
}

func (l sessionListener) OnOutput(category schema.OutputCategory, text string) {
	l.s.emitOutput(category, text)
}

func (l sessionListener) OnContext(thread *rdp.ContextActor) {
	l.s.mu.Lock()
	l.s.thread = thread
	l.s.mu.Unlock()
}

func (l sessionListener) OnPaused(p rdp.Pause) {
	l.s.onPaused(p)
}

func (l sessionListener) OnResumed() {
	l.s.gate.reset()
	l.s.handles.reset()
}

func (l sessionListener) OnNewSource(src rdp.Source) {
	if l.s.sources.publish(src) {
		l.s.log.Debug("session source", "path", src.Path, "actor", src.Actor)
	}
}

func (l sessionListener) OnFatal(err error) {
	l.s.emitOutput(schema.OutputStderr, err.Error()+"\n")
	go l.s.shutdown(err)
}
