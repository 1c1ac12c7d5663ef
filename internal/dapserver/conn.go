package dapserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/go-dap"
	"golang.org/x/sync/errgroup"
	"pkt.systems/ffdebug/internal/eventbus"
	"pkt.systems/pslog"
)

// errClosed ends a connection after a disconnect request was answered.
var errClosed = errors.New("dap connection closed")

type connection struct {
	cfg     Config
	session Debugger
	rw      io.ReadWriter
	log     pslog.Logger

	writeMu sync.Mutex
	seq     int

	inflight  sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
	stop      chan struct{}
}

func newConnection(cfg Config, session Debugger, rw io.ReadWriter, log pslog.Logger) *connection {
	return &connection{
		cfg:     cfg,
		session: session,
		rw:      rw,
		log:     log,
		closing: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// run serves requests and forwards session events until the editor goes away
// or disconnects.
func (c *connection) run(ctx context.Context, events <-chan eventbus.Event) error {
	defer close(c.stop)
	msgs := make(chan dap.Message)
	readErr := make(chan error, 1)
	go c.readLoop(msgs, readErr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.pump(gctx, events) })
	g.Go(func() error { return c.dispatch(gctx, msgs, readErr) })
	err := g.Wait()
	if errors.Is(err, errClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *connection) readLoop(msgs chan<- dap.Message, readErr chan<- error) {
	reader := bufio.NewReader(c.rw)
	for {
		msg, err := dap.ReadProtocolMessage(reader)
		if err != nil {
			var fieldErr *dap.DecodeProtocolMessageFieldError
			if errors.As(err, &fieldErr) && fieldErr.SubType == "request" && fieldErr.FieldName == "command" {
				c.sendUnsupported(fieldErr.Seq, fieldErr.FieldValue)
				continue
			}
			readErr <- err
			return
		}
		select {
		case msgs <- msg:
		case <-c.stop:
			return
		}
	}
}

func (c *connection) dispatch(ctx context.Context, msgs <-chan dap.Message, readErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closing:
			return errClosed
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				c.log.Info("dap client closed stream")
				return io.EOF
			}
			return err
		case msg := <-msgs:
			req, ok := msg.(dap.RequestMessage)
			if !ok {
				c.log.Warn("dap unexpected message", "seq", msg.GetSeq())
				continue
			}
			c.inflight.Add(1)
			go func() {
				defer c.inflight.Done()
				c.handle(ctx, req)
			}()
		}
	}
}

// pump writes session events in publication order. Events already queued
// when the connection winds down are still flushed.
func (c *connection) pump(ctx context.Context, events <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					c.sendEvent(ev)
				default:
					return nil
				}
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.sendEvent(ev)
		}
	}
}

func (c *connection) sendEvent(ev eventbus.Event) {
	if msg := eventMessage(ev); msg != nil {
		c.send(msg)
	}
}

// closeAfterDisconnect ends the connection once the disconnect response is out.
func (c *connection) closeAfterDisconnect() {
	c.closeOnce.Do(func() { close(c.closing) })
}

func (c *connection) send(msg dap.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.seq++
	switch m := msg.(type) {
	case dap.ResponseMessage:
		m.GetResponse().Seq = c.seq
	case dap.EventMessage:
		m.GetEvent().Seq = c.seq
	}
	if err := dap.WriteProtocolMessage(c.rw, msg); err != nil {
		c.log.Warn("dap write failed", "err", err)
		return
	}
	c.log.Trace("dap sent", "seq", c.seq)
}
