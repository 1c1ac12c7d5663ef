package schema

// ThreadID is the single logical thread exposed to the editor.
const ThreadID = 1

// Breakpoint is a source breakpoint as reported to the editor.
type Breakpoint struct {
	ID       int
	Path     string
	Line     int
	Verified bool
	Message  string
}

// StackFrame is one editor-facing stack frame. ID is the frame depth.
type StackFrame struct {
	ID     int
	Name   string
	Path   string
	URL    string
	Line   int
	Column int
}

// Scope is one environment of a frame. Reference feeds Variables.
type Scope struct {
	Name      string
	Reference int
}

// Variable is a named value. Reference is non-zero when the value can be
// expanded further.
type Variable struct {
	Name      string
	Value     string
	Reference int
}

// EvalResult is the editor-facing result of an evaluation.
type EvalResult struct {
	Result    string
	Reference int
}
