package rdp

import "pkt.systems/ffdebug/schema"

// Pause reasons reported in a paused notification's why.type.
const (
	WhyAttached        = "attached"
	WhyInterrupted     = "interrupted"
	WhyBreakpoint      = "breakpoint"
	WhyResumeLimit     = "resumeLimit"
	WhyDebugger        = "debuggerStatement"
	WhyClientEvaluated = "clientEvaluated"
)

// Pause is a thread pause other than the end of a client evaluation.
type Pause struct {
	Reason string
	// Actors lists the breakpoint actors hit, for breakpoint pauses.
	Actors []string
	Frame  *schema.FrameForm
}

// Source is a script whose URL resolved to a local path.
type Source struct {
	Path  string
	URL   string
	Actor string
}

// BreakpointResult is the outcome of placing one breakpoint. A failed
// placement has an empty ID, the requested line and Err set.
type BreakpointResult struct {
	ID       string
	Line     int
	Verified bool
	Err      error
}

// Listener receives session-level notifications from the actor tree.
// Callbacks run on the connection's read goroutine and must not wait on
// replies from the browser.
type Listener interface {
	OnOutput(category schema.OutputCategory, text string)
	OnContext(ctx *ContextActor)
	OnPaused(p Pause)
	OnResumed()
	OnNewSource(src Source)
	OnFatal(err error)
}

type nopListener struct{}

func (nopListener) OnOutput(schema.OutputCategory, string) {}
func (nopListener) OnContext(*ContextActor)                {}
func (nopListener) OnPaused(Pause)                         {}
func (nopListener) OnResumed()                             {}
func (nopListener) OnNewSource(Source)                     {}
func (nopListener) OnFatal(error)                          {}
