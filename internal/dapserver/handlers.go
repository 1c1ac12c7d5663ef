package dapserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/go-dap"
	"pkt.systems/ffdebug/schema"
)

// Error ids reported in error responses.
const (
	errIDGeneric = 1000 + iota
	errIDUnsupported
	errIDConfiguration
	errIDNotReady
	errIDStopping
	errIDInvalidReference
	errIDTabNotFound
)

const threadName = "main"

func (c *connection) handle(ctx context.Context, msg dap.RequestMessage) {
	req := msg.GetRequest()
	log := c.log.With("command", req.Command, "request_seq", req.Seq)
	log.Debug("dap request")
	if _, ok := msg.(*dap.LaunchRequest); !ok && c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	var err error
	switch r := msg.(type) {
	case *dap.InitializeRequest:
		c.onInitialize(r)
	case *dap.LaunchRequest:
		err = c.onLaunch(ctx, r)
	case *dap.SetBreakpointsRequest:
		err = c.onSetBreakpoints(ctx, r)
	case *dap.SetExceptionBreakpointsRequest:
		c.send(&dap.SetExceptionBreakpointsResponse{Response: newResponse(req)})
	case *dap.ConfigurationDoneRequest:
		if err = c.session.ConfigurationDone(ctx); err == nil {
			c.send(&dap.ConfigurationDoneResponse{Response: newResponse(req)})
		}
	case *dap.ThreadsRequest:
		c.send(&dap.ThreadsResponse{
			Response: newResponse(req),
			Body:     dap.ThreadsResponseBody{Threads: []dap.Thread{{Id: schema.ThreadID, Name: threadName}}},
		})
	case *dap.StackTraceRequest:
		err = c.onStackTrace(ctx, r)
	case *dap.ScopesRequest:
		err = c.onScopes(ctx, r)
	case *dap.VariablesRequest:
		err = c.onVariables(ctx, r)
	case *dap.EvaluateRequest:
		err = c.onEvaluate(ctx, r)
	case *dap.ContinueRequest:
		if err = c.session.Continue(ctx); err == nil {
			c.send(&dap.ContinueResponse{
				Response: newResponse(req),
				Body:     dap.ContinueResponseBody{AllThreadsContinued: true},
			})
		}
	case *dap.NextRequest:
		if err = c.session.Next(ctx); err == nil {
			c.send(&dap.NextResponse{Response: newResponse(req)})
		}
	case *dap.StepInRequest:
		if err = c.session.StepIn(ctx); err == nil {
			c.send(&dap.StepInResponse{Response: newResponse(req)})
		}
	case *dap.StepOutRequest:
		if err = c.session.StepOut(ctx); err == nil {
			c.send(&dap.StepOutResponse{Response: newResponse(req)})
		}
	case *dap.PauseRequest:
		if err = c.session.Pause(ctx); err == nil {
			c.send(&dap.PauseResponse{Response: newResponse(req)})
		}
	case *dap.DisconnectRequest:
		err = c.session.Disconnect(ctx)
		if err == nil {
			c.send(&dap.DisconnectResponse{Response: newResponse(req)})
		}
		c.closeAfterDisconnect()
	default:
		c.sendUnsupported(req.Seq, req.Command)
		return
	}
	if err != nil {
		log.Warn("dap request failed", "err", err)
		c.sendError(req.Seq, req.Command, err)
	}
}

func (c *connection) onInitialize(r *dap.InitializeRequest) {
	c.log.Info("dap initialize", "client", r.Arguments.ClientID, "adapter", r.Arguments.AdapterID, "version", c.cfg.Version)
	c.send(&dap.InitializeResponse{
		Response: newResponse(&r.Request),
		Body: dap.Capabilities{
			SupportsConfigurationDoneRequest: true,
			SupportsEvaluateForHovers:        true,
		},
	})
}

func (c *connection) onLaunch(ctx context.Context, r *dap.LaunchRequest) error {
	var cfg schema.LaunchConfig
	if len(r.Arguments) > 0 {
		if err := json.Unmarshal(r.Arguments, &cfg); err != nil {
			return fmt.Errorf("%w: launch arguments: %v", schema.ErrConfiguration, err)
		}
	}
	if err := c.session.Launch(ctx, cfg); err != nil {
		return err
	}
	c.send(&dap.LaunchResponse{Response: newResponse(&r.Request)})
	return nil
}

func (c *connection) onSetBreakpoints(ctx context.Context, r *dap.SetBreakpointsRequest) error {
	path := r.Arguments.Source.Path
	if path == "" {
		return fmt.Errorf("%w: breakpoint source has no path", schema.ErrConfiguration)
	}
	lines := make([]int, 0, len(r.Arguments.Breakpoints))
	for _, bp := range r.Arguments.Breakpoints {
		lines = append(lines, bp.Line)
	}
	if len(r.Arguments.Breakpoints) == 0 {
		lines = append(lines, r.Arguments.Lines...)
	}
	bps, err := c.session.SetBreakpoints(ctx, path, lines)
	if err != nil {
		return err
	}
	out := make([]dap.Breakpoint, 0, len(bps))
	for _, bp := range bps {
		out = append(out, toBreakpoint(bp))
	}
	c.send(&dap.SetBreakpointsResponse{
		Response: newResponse(&r.Request),
		Body:     dap.SetBreakpointsResponseBody{Breakpoints: out},
	})
	return nil
}

func (c *connection) onStackTrace(ctx context.Context, r *dap.StackTraceRequest) error {
	frames, err := c.session.StackTrace(ctx, r.Arguments.StartFrame, r.Arguments.Levels)
	if err != nil {
		return err
	}
	out := make([]dap.StackFrame, 0, len(frames))
	for _, f := range frames {
		out = append(out, dap.StackFrame{
			Id:     f.ID,
			Name:   f.Name,
			Source: toSource(f.Path, f.URL),
			Line:   f.Line,
			Column: f.Column,
		})
	}
	c.send(&dap.StackTraceResponse{
		Response: newResponse(&r.Request),
		Body:     dap.StackTraceResponseBody{StackFrames: out, TotalFrames: r.Arguments.StartFrame + len(out)},
	})
	return nil
}

func (c *connection) onScopes(ctx context.Context, r *dap.ScopesRequest) error {
	scopes, err := c.session.Scopes(ctx, r.Arguments.FrameId)
	if err != nil {
		return err
	}
	out := make([]dap.Scope, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, dap.Scope{
			Name:               s.Name,
			VariablesReference: s.Reference,
			Expensive:          s.Name == "Global",
		})
	}
	c.send(&dap.ScopesResponse{
		Response: newResponse(&r.Request),
		Body:     dap.ScopesResponseBody{Scopes: out},
	})
	return nil
}

func (c *connection) onVariables(ctx context.Context, r *dap.VariablesRequest) error {
	vars, err := c.session.Variables(ctx, r.Arguments.VariablesReference)
	if err != nil {
		return err
	}
	out := make([]dap.Variable, 0, len(vars))
	for _, v := range vars {
		out = append(out, dap.Variable{Name: v.Name, Value: v.Value, VariablesReference: v.Reference})
	}
	c.send(&dap.VariablesResponse{
		Response: newResponse(&r.Request),
		Body:     dap.VariablesResponseBody{Variables: out},
	})
	return nil
}

func (c *connection) onEvaluate(ctx context.Context, r *dap.EvaluateRequest) error {
	res, err := c.session.Evaluate(ctx, r.Arguments.Expression, r.Arguments.FrameId)
	if err != nil {
		return err
	}
	c.send(&dap.EvaluateResponse{
		Response: newResponse(&r.Request),
		Body:     dap.EvaluateResponseBody{Result: res.Result, VariablesReference: res.Reference},
	})
	return nil
}

func (c *connection) sendUnsupported(seq int, command string) {
	c.log.Warn("dap unsupported request", "command", command, "request_seq", seq)
	c.sendErrorID(seq, command, errIDUnsupported, fmt.Sprintf("unsupported request %q", command))
}

func (c *connection) sendError(seq int, command string, err error) {
	c.sendErrorID(seq, command, errorID(err), err.Error())
}

func (c *connection) sendErrorID(seq int, command string, id int, text string) {
	resp := newResponse(&dap.Request{ProtocolMessage: dap.ProtocolMessage{Seq: seq}, Command: command})
	resp.Success = false
	resp.Message = text
	c.send(&dap.ErrorResponse{
		Response: resp,
		Body:     dap.ErrorResponseBody{Error: &dap.ErrorMessage{Id: id, Format: text, ShowUser: true}},
	})
}

func errorID(err error) int {
	switch {
	case errors.Is(err, schema.ErrConfiguration):
		return errIDConfiguration
	case errors.Is(err, schema.ErrNotReady):
		return errIDNotReady
	case errors.Is(err, schema.ErrStopping):
		return errIDStopping
	case errors.Is(err, schema.ErrInvalidReference):
		return errIDInvalidReference
	case errors.Is(err, schema.ErrTabNotFound):
		return errIDTabNotFound
	}
	return errIDGeneric
}

func newResponse(req *dap.Request) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		Command:         req.Command,
		RequestSeq:      req.Seq,
		Success:         true,
	}
}

func toSource(path, url string) *dap.Source {
	switch {
	case path != "":
		return &dap.Source{Name: filepath.Base(path), Path: path}
	case url != "":
		return &dap.Source{Name: url}
	}
	return nil
}

func toBreakpoint(bp schema.Breakpoint) dap.Breakpoint {
	out := dap.Breakpoint{
		Id:       bp.ID,
		Verified: bp.Verified,
		Message:  bp.Message,
		Line:     bp.Line,
	}
	if bp.Path != "" {
		out.Source = toSource(bp.Path, "")
	}
	return out
}
