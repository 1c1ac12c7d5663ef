package ffdebug

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"pkt.systems/ffdebug/internal/dapserver"
	"pkt.systems/ffdebug/schema"
)

func TestServerStopCancelsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &adapterServer{
		ctx:     ctx,
		cancel:  cancel,
		started: true,
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected server context to be canceled")
	}
}

func TestServerWaitBeforeStart(t *testing.T) {
	server, err := New(ServerConfig{}, ServerDeps{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := server.Wait(); err == nil {
		t.Fatalf("expected Wait to fail before Start")
	}
	if err := server.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
}

type recordingSink struct {
	terminated chan schema.TerminatedEvent
}

func (recordingSink) OnInitialized(schema.InitializedEvent) {}
func (recordingSink) OnStopped(schema.StoppedEvent)         {}
func (recordingSink) OnOutput(schema.OutputEvent)           {}
func (recordingSink) OnBreakpoint(schema.BreakpointEvent)   {}
func (s recordingSink) OnTerminated(ev schema.TerminatedEvent) {
	s.terminated <- ev
}

func TestServeConnReportsUnreachableBrowser(t *testing.T) {
	sink := recordingSink{terminated: make(chan schema.TerminatedEvent, 1)}
	refused := errors.New("connection refused")
	server, err := New(ServerConfig{
		DAP:      dapserver.Config{Version: "test"},
		Defaults: schema.LaunchConfig{DialTimeout: 30 * time.Millisecond},
	}, ServerDeps{
		EventSink: sink,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, refused
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	editor, adapter := net.Pipe()
	defer func() { _ = editor.Close() }()
	done := make(chan error, 1)
	go func() { done <- server.ServeConn(context.Background(), adapter) }()

	msgs := make(chan dap.Message, 16)
	go func() {
		reader := bufio.NewReader(editor)
		for {
			msg, err := dap.ReadProtocolMessage(reader)
			if err != nil {
				close(msgs)
				return
			}
			msgs <- msg
		}
	}()
	raw, _ := json.Marshal(map[string]any{
		"seq":       1,
		"type":      "request",
		"command":   "launch",
		"arguments": map[string]any{"program": t.TempDir() + "/index.html"},
	})
	if _, err := fmt.Fprintf(editor, "Content-Length: %d\r\n\r\n%s", len(raw), raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	var launchErr *dap.ErrorResponse
	sawTerminated := false
	deadline := time.After(3 * time.Second)
	for launchErr == nil || !sawTerminated {
		select {
		case msg := <-msgs:
			switch m := msg.(type) {
			case *dap.ErrorResponse:
				launchErr = m
			case *dap.TerminatedEvent:
				sawTerminated = true
			}
		case <-deadline:
			t.Fatalf("timed out: error=%v terminated=%v", launchErr != nil, sawTerminated)
		}
	}
	if launchErr.Command != "launch" || launchErr.Success {
		t.Fatalf("unexpected launch response %+v", launchErr)
	}
	select {
	case ev := <-sink.terminated:
		if !errors.Is(ev.Err, refused) {
			t.Fatalf("expected dial failure as cause, got %v", ev.Err)
		}
	case <-time.After(time.Second):
		t.Fatalf("extra sink missed terminated event")
	}

	_ = editor.Close()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("ServeConn did not return")
	}
}
