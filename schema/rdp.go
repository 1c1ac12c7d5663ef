package schema

// TabForm describes one browser tab in a listTabs reply.
type TabForm struct {
	Actor        string `json:"actor"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	ConsoleActor string `json:"consoleActor"`
}

// ListTabsReply is the root actor's listTabs reply.
type ListTabsReply struct {
	Tabs     []TabForm `json:"tabs"`
	Selected int       `json:"selected"`
}

// SourceForm describes a script source known to a thread.
type SourceForm struct {
	Actor string `json:"actor"`
	URL   string `json:"url"`
}

// Location is a position inside a source.
type Location struct {
	URL    string      `json:"url,omitempty"`
	Source *SourceForm `json:"source,omitempty"`
	Line   int         `json:"line,omitempty"`
	Column int         `json:"column,omitempty"`
}

// SourceURL returns the location URL, preferring the embedded source form.
func (l Location) SourceURL() string {
	if l.Source != nil && l.Source.URL != "" {
		return l.Source.URL
	}
	return l.URL
}

// FunctionForm names the callee of a frame or the function of an environment.
type FunctionForm struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Label returns the best available function name.
func (f *FunctionForm) Label() string {
	if f == nil {
		return ""
	}
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Name
}

// EnvironmentForm is one link of a lexical environment chain.
type EnvironmentForm struct {
	Actor    string           `json:"actor"`
	Type     string           `json:"type"`
	Parent   *EnvironmentForm `json:"parent,omitempty"`
	Function *FunctionForm    `json:"function,omitempty"`
}

// FrameForm is one stack frame as reported by a thread.
type FrameForm struct {
	Actor       string           `json:"actor"`
	Depth       int              `json:"depth"`
	Type        string           `json:"type"`
	Callee      *FunctionForm    `json:"callee,omitempty"`
	Where       Location         `json:"where"`
	Environment *EnvironmentForm `json:"environment,omitempty"`
}

// FramesReply is a thread's frames reply.
type FramesReply struct {
	Frames []FrameForm `json:"frames"`
}

// FrameFinished reports how a client evaluation completed.
type FrameFinished struct {
	Return     Grip `json:"return,omitempty"`
	Throw      Grip `json:"throw,omitempty"`
	Terminated bool `json:"terminated,omitempty"`
}

// PauseWhy explains why a thread paused.
type PauseWhy struct {
	Type          string         `json:"type"`
	Actors        []string       `json:"actors,omitempty"`
	FrameFinished *FrameFinished `json:"frameFinished,omitempty"`
}

// PausedPacket is a thread's paused notification.
type PausedPacket struct {
	Why   PauseWhy   `json:"why"`
	Frame *FrameForm `json:"frame,omitempty"`
}

// Descriptor is a property or binding descriptor. Accessor properties carry
// get/set instead of value.
type Descriptor struct {
	Value      Grip `json:"value,omitempty"`
	Get        Grip `json:"get,omitempty"`
	Set        Grip `json:"set,omitempty"`
	Writable   bool `json:"writable,omitempty"`
	Enumerable bool `json:"enumerable,omitempty"`
}

// Bindings lists the names bound in an environment.
type Bindings struct {
	Arguments []map[string]Descriptor `json:"arguments"`
	Variables map[string]Descriptor   `json:"variables"`
}

// BindingsReply is an environment's bindings reply.
type BindingsReply struct {
	Bindings Bindings `json:"bindings"`
}

// PrototypeAndProperties is an object grip's prototypeAndProperties reply.
type PrototypeAndProperties struct {
	Prototype     Grip                  `json:"prototype,omitempty"`
	OwnProperties map[string]Descriptor `json:"ownProperties"`
}

// SetBreakpointReply is a source actor's setBreakpoint reply.
type SetBreakpointReply struct {
	Actor          string    `json:"actor"`
	IsPending      bool      `json:"isPending"`
	ActualLocation *Location `json:"actualLocation,omitempty"`
}

// ConsoleMessage is a console API call.
type ConsoleMessage struct {
	Level      string `json:"level"`
	Arguments  []Grip `json:"arguments"`
	Filename   string `json:"filename,omitempty"`
	LineNumber int    `json:"lineNumber,omitempty"`
}

// PageError is an uncaught page error or warning.
type PageError struct {
	ErrorMessage Grip   `json:"errorMessage"`
	SourceName   string `json:"sourceName,omitempty"`
	LineNumber   int    `json:"lineNumber,omitempty"`
	Warning      bool   `json:"warning,omitempty"`
	Error        bool   `json:"error,omitempty"`
	Exception    bool   `json:"exception,omitempty"`
}

// CachedMessage is one entry of a getCachedMessages reply. The _type field
// selects which fields are populated.
type CachedMessage struct {
	Kind         string `json:"_type"`
	Level        string `json:"level,omitempty"`
	Arguments    []Grip `json:"arguments,omitempty"`
	Filename     string `json:"filename,omitempty"`
	ErrorMessage Grip   `json:"errorMessage,omitempty"`
	SourceName   string `json:"sourceName,omitempty"`
	LineNumber   int    `json:"lineNumber,omitempty"`
	Warning      bool   `json:"warning,omitempty"`
}

// Console returns the entry as a console API call.
func (m CachedMessage) Console() ConsoleMessage {
	return ConsoleMessage{Level: m.Level, Arguments: m.Arguments, Filename: m.Filename, LineNumber: m.LineNumber}
}

// PageError returns the entry as a page error.
func (m CachedMessage) PageError() PageError {
	return PageError{ErrorMessage: m.ErrorMessage, SourceName: m.SourceName, LineNumber: m.LineNumber, Warning: m.Warning}
}

// CachedMessagesReply is a console's getCachedMessages reply.
type CachedMessagesReply struct {
	Messages []CachedMessage `json:"messages"`
}
