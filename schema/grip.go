package schema

import (
	"bytes"
	"encoding/json"
)

// Grip is a compact reference to a browser-side value. Primitives arrive as
// plain JSON; everything else is an object tagged with a type field.
type Grip []byte

type gripObject struct {
	Type    string `json:"type"`
	Class   string `json:"class"`
	Actor   string `json:"actor"`
	Initial string `json:"initial"`
}

// gripTags are values JSON cannot carry, rendered by their tag.
var gripTags = map[string]bool{
	"null":      true,
	"undefined": true,
	"Infinity":  true,
	"-Infinity": true,
	"NaN":       true,
	"-0":        true,
}

// UnmarshalJSON keeps a copy of the raw value, including a literal null.
func (g *Grip) UnmarshalJSON(data []byte) error {
	*g = append((*g)[0:0], data...)
	return nil
}

// MarshalJSON writes the raw value back out.
func (g Grip) MarshalJSON() ([]byte, error) {
	if len(g) == 0 {
		return []byte("null"), nil
	}
	return g, nil
}

// IsZero reports whether the grip was absent from its container.
func (g Grip) IsZero() bool {
	return len(bytes.TrimSpace(g)) == 0
}

func (g Grip) object() (gripObject, bool) {
	trimmed := bytes.TrimSpace(g)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return gripObject{}, false
	}
	var obj gripObject
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return gripObject{}, false
	}
	return obj, true
}

// Display renders the grip for an editor.
func (g Grip) Display() string {
	obj, ok := g.object()
	if !ok {
		return string(bytes.TrimSpace(g))
	}
	if gripTags[obj.Type] {
		return obj.Type
	}
	switch obj.Type {
	case "longString":
		return obj.Initial
	case "object":
		return "[object " + obj.Class + "]"
	}
	return obj.Type
}

// Text renders the grip like Display but leaves strings unquoted.
func (g Grip) Text() string {
	trimmed := bytes.TrimSpace(g)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return g.Display()
}

// ActorID returns the actor of a remote object grip, or "".
func (g Grip) ActorID() string {
	obj, ok := g.object()
	if !ok || obj.Type != "object" {
		return ""
	}
	return obj.Actor
}
