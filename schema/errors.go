package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrFraming indicates a malformed length prefix on the remote-debugging stream.
	ErrFraming = errors.New("malformed frame length prefix")
	// ErrUnroutable indicates an inbound packet named no registered actor.
	ErrUnroutable = errors.New("no actor registered for packet")
	// ErrActor matches any *ActorError via errors.Is.
	ErrActor = errors.New("actor error")
	// ErrTabNotFound indicates no open tab matched the launch target.
	ErrTabNotFound = errors.New("no open tab matches the launch target")
	// ErrConfiguration indicates an unusable launch configuration.
	ErrConfiguration = errors.New("invalid launch configuration")
	// ErrStopping indicates the debug session is shutting down.
	ErrStopping = errors.New("debug session stopping")
	// ErrNotReady indicates the session has no attached execution context yet.
	ErrNotReady = errors.New("debug session not ready")
	// ErrEvalSuperseded indicates a newer evaluation replaced a pending one.
	ErrEvalSuperseded = errors.New("evaluation superseded by a newer request")
	// ErrInvalidReference indicates an unknown variables reference.
	ErrInvalidReference = errors.New("invalid variables reference")
)

// ActorError is an error payload returned by a browser-side actor.
type ActorError struct {
	Actor   string
	Code    string
	Message string
	Body    json.RawMessage
}

func (e *ActorError) Error() string {
	if e == nil {
		return "actor error"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Actor, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Actor, e.Code)
}

// Is reports whether target is ErrActor.
func (e *ActorError) Is(target error) bool {
	return target == ErrActor
}
