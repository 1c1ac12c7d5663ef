package schema

// StopReason explains a stopped event.
type StopReason string

const (
	// StopEntry is the initial pause when stopOnEntry is set.
	StopEntry StopReason = "entry"
	// StopDebugger is a debugger statement or an otherwise unclassified pause.
	StopDebugger StopReason = "debugger"
	// StopBreakpoint is a breakpoint hit.
	StopBreakpoint StopReason = "breakpoint"
	// StopStep is the end of a next/step/finish resumption.
	StopStep StopReason = "step"
	// StopPause is a pause requested by the editor.
	StopPause StopReason = "pause"
)

// OutputCategory is the editor output channel.
type OutputCategory string

const (
	// OutputStdout carries ordinary console output.
	OutputStdout OutputCategory = "stdout"
	// OutputStderr carries errors.
	OutputStderr OutputCategory = "stderr"
	// OutputConsole carries warnings and adapter diagnostics.
	OutputConsole OutputCategory = "console"
)

// InitializedEvent signals that the session accepts breakpoint configuration.
type InitializedEvent struct {
	SessionID string
}

// StoppedEvent signals the target paused.
type StoppedEvent struct {
	SessionID   string
	Reason      StopReason
	ThreadID    int
	Description string
}

// OutputEvent carries console or diagnostic text.
type OutputEvent struct {
	SessionID string
	Category  OutputCategory
	Text      string
}

// BreakpointEvent carries an out-of-band breakpoint update.
type BreakpointEvent struct {
	SessionID  string
	Reason     string
	Breakpoint Breakpoint
}

// TerminatedEvent signals the session ended.
type TerminatedEvent struct {
	SessionID string
	Err       error
}
