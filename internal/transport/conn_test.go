package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"pkt.systems/ffdebug/schema"
)

func TestConnServeDeliversInOrder(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(client, nil)

	var (
		mu     sync.Mutex
		bodies []string
	)
	disconnected := make(chan error, 2)
	conn.OnDisconnect(func(err error) { disconnected <- err })
	served := make(chan error, 1)
	go func() {
		served <- conn.Serve(func(body []byte) {
			mu.Lock()
			bodies = append(bodies, string(body))
			mu.Unlock()
		})
	}()

	stream := append(Encode([]byte(`{"n":1}`)), Encode([]byte(`{"n":2}`))...)
	if _, err := server.Write(stream[:5]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := server.Write(stream[5:]); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = server.Close()

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return")
	}
	if err := <-disconnected; err != nil {
		t.Fatalf("expected clean disconnect, got %v", err)
	}
	select {
	case <-disconnected:
		t.Fatalf("disconnect hook fired twice")
	default:
	}
	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 || bodies[0] != `{"n":1}` || bodies[1] != `{"n":2}` {
		t.Fatalf("unexpected bodies %q", bodies)
	}
	if !conn.Disconnected() {
		t.Fatalf("expected disconnected state")
	}
	if err := conn.Send([]byte(`{}`)); err == nil {
		t.Fatalf("expected Send to fail after disconnect")
	}
}

func TestConnServeFramingErrorIsFatal(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	conn := NewConn(client, nil)
	disconnected := make(chan error, 1)
	conn.OnDisconnect(func(err error) { disconnected <- err })
	served := make(chan error, 1)
	go func() { served <- conn.Serve(func([]byte) {}) }()

	if _, err := server.Write([]byte("x:{}")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case err := <-served:
		if !errors.Is(err, schema.ErrFraming) {
			t.Fatalf("expected ErrFraming, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return")
	}
	if err := <-disconnected; !errors.Is(err, schema.ErrFraming) {
		t.Fatalf("expected disconnect with ErrFraming, got %v", err)
	}
}

func TestConnSendFrames(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	conn := NewConn(client, nil)

	go func() { _ = conn.Send([]byte(`{"to":"root","type":"listTabs"}`)) }()

	var dec Decoder
	buf := make([]byte, 128)
	deadline := time.Now().Add(2 * time.Second)
	_ = server.SetReadDeadline(deadline)
	for {
		n, err := server.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		bodies, err := dec.Feed(buf[:n])
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		if len(bodies) == 1 {
			if string(bodies[0]) != `{"to":"root","type":"listTabs"}` {
				t.Fatalf("unexpected body %q", bodies[0])
			}
			return
		}
	}
}

func TestDialRetriesUntilListening(t *testing.T) {
	attempts := 0
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		client, server := net.Pipe()
		go server.Close()
		return client, nil
	}
	conn, err := Dial(context.Background(), "127.0.0.1:9223", DialOptions{Timeout: 5 * time.Second, Dial: dial})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDialGivesUpWithoutTimeout(t *testing.T) {
	attempts := 0
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		attempts++
		return nil, errors.New("connection refused")
	}
	if _, err := Dial(context.Background(), "127.0.0.1:9223", DialOptions{Dial: dial}); err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}
