package dapserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/ffdebug/internal/eventbus"
	"pkt.systems/ffdebug/internal/logx"
	"pkt.systems/ffdebug/schema"
	"pkt.systems/pslog"
)

// Debugger is the session surface the adapter drives. *core.Session
// satisfies it.
type Debugger interface {
	Launch(ctx context.Context, cfg schema.LaunchConfig) error
	ConfigurationDone(ctx context.Context) error
	SetBreakpoints(ctx context.Context, path string, lines []int) ([]schema.Breakpoint, error)
	StackTrace(ctx context.Context, startFrame, levels int) ([]schema.StackFrame, error)
	Scopes(ctx context.Context, frameID int) ([]schema.Scope, error)
	Variables(ctx context.Context, reference int) ([]schema.Variable, error)
	Evaluate(ctx context.Context, expr string, frameID int) (schema.EvalResult, error)
	Continue(ctx context.Context) error
	Next(ctx context.Context) error
	StepIn(ctx context.Context) error
	StepOut(ctx context.Context) error
	Pause(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// SessionFactory builds the debugger behind one editor connection. Events of
// the session must be published to the server's bus under id.
type SessionFactory func(id string, logger pslog.Logger) Debugger

// Config configures the adapter server.
type Config struct {
	// Addr is the TCP listen address for ListenAndServe.
	Addr string
	// RequestTimeout bounds every request except launch; zero disables it.
	RequestTimeout time.Duration
	// Version is reported to the editor in the initialize response.
	Version string
}

// Server speaks the Debug Adapter Protocol to editors, one debug session per
// connection.
type Server struct {
	cfg        Config
	bus        *eventbus.Bus
	newSession SessionFactory
	newID      func() string
}

// New constructs a Server publishing session events through bus.
func New(cfg Config, bus *eventbus.Bus, factory SessionFactory) (*Server, error) {
	if bus == nil {
		return nil, errors.New("event bus is required")
	}
	if factory == nil {
		return nil, errors.New("session factory is required")
	}
	return &Server{cfg: cfg, bus: bus, newSession: factory, newID: uuid.NewString}, nil
}

// ListenAndServe accepts editor connections on cfg.Addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener accepts editor connections on ln until ctx is done. ln is
// closed on return.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	log := pslog.Ctx(ctx)
	log.Info("dap listen", "addr", ln.Addr().String())
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		log.Debug("dap accept", "remote", conn.RemoteAddr().String())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Serve(ctx, conn); err != nil {
				log.Warn("dap connection failed", "remote", conn.RemoteAddr().String(), "err", err)
			}
		}()
	}
}

// Serve runs one debug session over rw until the editor disconnects, the
// stream ends or ctx is done. rw is closed on return.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriteCloser) error {
	id := s.newID()
	log := logx.WithSession(pslog.Ctx(ctx), id)
	ctx = pslog.ContextWithLogger(ctx, log)
	events, unsubscribe := s.bus.Subscribe(id)
	session := s.newSession(id, log)
	c := newConnection(s.cfg, session, rw, log)
	log.Info("dap session start")

	err := c.run(ctx, events)

	unsubscribe()
	if derr := session.Disconnect(context.Background()); derr != nil {
		log.Warn("dap session disconnect failed", "err", derr)
	}
	c.inflight.Wait()
	_ = rw.Close()
	log.Info("dap session end", "err", err)
	return err
}
