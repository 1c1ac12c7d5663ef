package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"
)

const readChunk = 64 * 1024

// Handler receives one complete frame body.
type Handler func(body []byte)

// DialFunc opens the raw stream.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// DialOptions controls Dial.
type DialOptions struct {
	// Timeout bounds the whole retry loop; zero means a single attempt.
	Timeout time.Duration
	Logger  pslog.Logger
	Dial    DialFunc
}

// dialSchedule is the backoff between attempts while the browser starts.
var dialSchedule = []time.Duration{
	100 * time.Millisecond, 100 * time.Millisecond, 250 * time.Millisecond,
	250 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond,
}

func dialDelay(attempt int) time.Duration {
	if attempt < len(dialSchedule) {
		return dialSchedule[attempt]
	}
	return time.Second
}

// Dial connects to addr, retrying until opts.Timeout elapses.
func Dial(ctx context.Context, addr string, opts DialOptions) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	dial := opts.Dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	deadline := time.Now().Add(opts.Timeout)
	for attempt := 0; ; attempt++ {
		nc, err := dial(ctx, "tcp", addr)
		if err == nil {
			logger.Debug("rdp connected", "addr", addr, "attempts", attempt+1)
			return NewConn(nc, logger), nil
		}
		delay := dialDelay(attempt)
		if opts.Timeout <= 0 || time.Now().Add(delay).After(deadline) {
			return nil, fmt.Errorf("connect %s: %w", addr, err)
		}
		logger.Trace("rdp connect retry", "addr", addr, "attempt", attempt+1, "err", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Conn is one framed remote-debugging connection. Reads happen on the
// goroutine running Serve; Send may be called from any goroutine.
type Conn struct {
	nc           net.Conn
	log          pslog.Logger
	wmu          sync.Mutex
	closed       atomic.Bool
	disconnected atomic.Bool
	hookMu       sync.Mutex
	onDisconnect func(error)
	discOnce     sync.Once
}

// NewConn wraps an established stream.
func NewConn(nc net.Conn, logger pslog.Logger) *Conn {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Conn{nc: nc, log: logger}
}

// OnDisconnect registers the hook invoked exactly once when the stream ends.
func (c *Conn) OnDisconnect(fn func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = fn
	c.hookMu.Unlock()
}

// Send frames and writes one body.
func (c *Conn) Send(body []byte) error {
	if c.disconnected.Load() {
		return net.ErrClosed
	}
	frame := Encode(body)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.nc.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	c.log.Trace("rdp send", "len", len(body), "body", string(body))
	return nil
}

// Serve reads until the stream ends, handing each complete frame body to
// handler in arrival order. A framing error closes the connection and is
// returned; a clean end of stream returns nil.
func (c *Conn) Serve(handler Handler) error {
	var dec Decoder
	buf := make([]byte, readChunk)
	for {
		n, readErr := c.nc.Read(buf)
		if n > 0 {
			bodies, err := dec.Feed(buf[:n])
			for _, body := range bodies {
				c.log.Trace("rdp recv", "len", len(body), "body", string(body))
				handler(body)
			}
			if err != nil {
				c.log.Error("rdp framing error", "err", err)
				_ = c.Close()
				c.disconnect(err)
				return err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, net.ErrClosed) || c.closed.Load() {
				c.log.Debug("rdp stream closed", "buffered", dec.Buffered())
				c.disconnect(nil)
				return nil
			}
			c.log.Warn("rdp read failed", "err", readErr)
			c.disconnect(readErr)
			return readErr
		}
	}
}

// Close closes the stream. Serve observes it and fires the disconnect hook.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.nc.Close()
}

// Disconnected reports whether the connection reached its terminal state.
func (c *Conn) Disconnected() bool {
	return c.disconnected.Load()
}

func (c *Conn) disconnect(err error) {
	c.discOnce.Do(func() {
		c.disconnected.Store(true)
		c.hookMu.Lock()
		fn := c.onDisconnect
		c.hookMu.Unlock()
		if fn != nil {
			fn(err)
		}
	})
}
