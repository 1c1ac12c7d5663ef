package rdp

import (
	"context"
	"fmt"
	"sort"

	"pkt.systems/ffdebug/schema"
)

// SourceActor addresses one script source.
type SourceActor struct {
	Base
}

func newSourceActor(d *Dispatcher) func(string) *SourceActor {
	return func(name string) *SourceActor {
		a := &SourceActor{}
		a.bind(d, name)
		return a
	}
}

// SetBreakpoint queues a setBreakpoint request for line.
func (a *SourceActor) SetBreakpoint(line int) *Call {
	return a.Go(schema.Request{
		"type":     "setBreakpoint",
		"location": map[string]any{"line": line},
	})
}

// BreakpointActor addresses one placed breakpoint.
type BreakpointActor struct {
	Base
}

func newBreakpointActor(d *Dispatcher) func(string) *BreakpointActor {
	return func(name string) *BreakpointActor {
		a := &BreakpointActor{}
		a.bind(d, name)
		return a
	}
}

// Delete removes the breakpoint.
func (a *BreakpointActor) Delete(ctx context.Context) error {
	_, err := a.Request(ctx, schema.Request{"type": "delete"})
	return err
}

// EnvironmentActor addresses one lexical environment.
type EnvironmentActor struct {
	Base
}

func newEnvironmentActor(d *Dispatcher) func(string) *EnvironmentActor {
	return func(name string) *EnvironmentActor {
		a := &EnvironmentActor{}
		a.bind(d, name)
		return a
	}
}

// Bindings lists the environment's arguments and then its variables.
func (a *EnvironmentActor) Bindings(ctx context.Context) ([]Property, error) {
	pkt, err := a.Request(ctx, schema.Request{"type": "bindings"})
	if err != nil {
		return nil, err
	}
	var reply schema.BindingsReply
	if err := pkt.Decode(&reply); err != nil {
		return nil, err
	}
	var out []Property
	for _, arg := range reply.Bindings.Arguments {
		out = append(out, sortedProperties(arg)...)
	}
	out = append(out, sortedProperties(reply.Bindings.Variables)...)
	return out, nil
}

// GripActor addresses one remote object.
type GripActor struct {
	Base
}

func newGripActor(d *Dispatcher) func(string) *GripActor {
	return func(name string) *GripActor {
		a := &GripActor{}
		a.bind(d, name)
		return a
	}
}

// Properties lists own properties followed by a synthetic __proto__ entry
// when the object has a prototype.
func (a *GripActor) Properties(ctx context.Context) ([]Property, error) {
	pkt, err := a.Request(ctx, schema.Request{"type": "prototypeAndProperties"})
	if err != nil {
		return nil, err
	}
	var reply schema.PrototypeAndProperties
	if err := pkt.Decode(&reply); err != nil {
		return nil, err
	}
	out := sortedProperties(reply.OwnProperties)
	if !reply.Prototype.IsZero() {
		out = append(out, valueProperty("__proto__", reply.Prototype))
	}
	return out, nil
}

// Property is one flattened name/value pair. Actor is set when the value is
// a remote object that can be expanded.
type Property struct {
	Name  string
	Value string
	Actor string
}

// accessorPlaceholder renders descriptors without a value field.
const accessorPlaceholder = "(property)"

func describe(name string, desc schema.Descriptor) Property {
	if desc.Value.IsZero() {
		return Property{Name: name, Value: accessorPlaceholder}
	}
	return valueProperty(name, desc.Value)
}

func valueProperty(name string, g schema.Grip) Property {
	return Property{Name: name, Value: g.Display(), Actor: g.ActorID()}
}

func sortedProperties(m map[string]schema.Descriptor) []Property {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Property, 0, len(names))
	for _, name := range names {
		out = append(out, describe(name, m[name]))
	}
	return out
}

func breakpointFailure(line int, err error) BreakpointResult {
	return BreakpointResult{Line: line, Err: fmt.Errorf("set breakpoint at line %d: %w", line, err)}
}
