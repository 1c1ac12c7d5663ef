package core

import (
	"pkt.systems/ffdebug/internal/transport"
	"pkt.systems/ffdebug/schema"
	"pkt.systems/pslog"
)

// SessionDeps captures optional dependencies for a debug session.
type SessionDeps struct {
	// ID labels the session in events and logs.
	ID        string
	EventSink EventSink
	Logger    pslog.Logger
	// Defaults fill launch fields the editor leaves unset.
	Defaults schema.LaunchConfig
	// Dial replaces the TCP dialer.
	Dial transport.DialFunc
	// Browser replaces the process launcher.
	Browser BrowserLauncher
}
