package logx

import (
	"context"

	"pkt.systems/pslog"
)

type contextKey int

const (
	sessionKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with a session id when available.
func WithSession(log pslog.Logger, sessionID string) pslog.Logger {
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithActor annotates the logger with a browser-side actor name.
func WithActor(log pslog.Logger, actor string) pslog.Logger {
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	if actor != "" {
		log = log.With("actor", actor)
	}
	return log
}

// ContextWithSession attaches a session-annotated logger and the session marker.
func ContextWithSession(ctx context.Context, log pslog.Logger, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if current, ok := ctx.Value(sessionKey).(string); ok && current == sessionID {
		return ctx
	}
	ctx = pslog.ContextWithLogger(ctx, WithSession(log, sessionID))
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// SessionID returns the session marker stored on ctx.
func SessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionKey).(string)
	return id
}
