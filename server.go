package ffdebug

import (
	"context"
	"errors"
	"io"
	"sync"

	"pkt.systems/ffdebug/core"
	"pkt.systems/ffdebug/internal/dapserver"
	"pkt.systems/ffdebug/internal/eventbus"
	"pkt.systems/ffdebug/internal/transport"
	"pkt.systems/ffdebug/schema"
	"pkt.systems/pslog"
)

// Server is the debug adapter: it serves editors over a stream or a TCP
// listener and runs one browser debug session per editor connection.
type Server interface {
	// ServeConn runs one session over rw until the editor goes away.
	ServeConn(ctx context.Context, rw io.ReadWriteCloser) error
	// Start listens for editors on the configured address.
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the adapter.
type ServerConfig struct {
	DAP dapserver.Config
	// Defaults fill launch fields editors leave unset.
	Defaults schema.LaunchConfig
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	Logger pslog.Logger
	// EventSink additionally receives every session event.
	EventSink core.EventSink
	// Dial replaces the TCP dialer used to reach browsers.
	Dial transport.DialFunc
	// Browser replaces the browser process launcher.
	Browser core.BrowserLauncher
}

// New constructs a debug adapter server.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	bus := eventbus.New(logger)
	sinks := []core.EventSink{bus, logSink{log: logger}}
	if deps.EventSink != nil {
		sinks = append(sinks, deps.EventSink)
	}
	sink := eventFanout{sinks: sinks}
	factory := func(id string, log pslog.Logger) dapserver.Debugger {
		return core.NewSession(core.SessionDeps{
			ID:        id,
			EventSink: sink,
			Logger:    log,
			Defaults:  cfg.Defaults,
			Dial:      deps.Dial,
			Browser:   deps.Browser,
		})
	}
	dap, err := dapserver.New(cfg.DAP, bus, factory)
	if err != nil {
		return nil, err
	}
	return &adapterServer{cfg: cfg, dap: dap, logger: logger}, nil
}

type adapterServer struct {
	cfg    ServerConfig
	dap    *dapserver.Server
	logger pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *adapterServer) ServeConn(ctx context.Context, rw io.ReadWriteCloser) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.dap.Serve(ctx, rw)
}

func (s *adapterServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info("server start", "dap_addr", s.cfg.DAP.Addr, "browser", s.cfg.Defaults.Address())
	go func() {
		if err := s.dap.ListenAndServe(s.ctx); err != nil {
			log.Error("dap server failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

func (s *adapterServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *adapterServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
