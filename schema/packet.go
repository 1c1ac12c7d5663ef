package schema

import (
	"encoding/json"
	"fmt"
)

// PacketKind classifies an inbound remote-debugging packet by shape.
type PacketKind int

const (
	// KindResponse is a reply to the actor's in-flight request.
	KindResponse PacketKind = iota
	// KindNotification is a server-initiated packet carrying a type field.
	KindNotification
	// KindError is an error reply carrying an error field.
	KindError
)

func (k PacketKind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindError:
		return "error"
	default:
		return "response"
	}
}

// Packet is one inbound message body with its routing fields decoded.
type Packet struct {
	From    string          `json:"from"`
	Type    string          `json:"type,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// ParsePacket decodes the routing fields of body and keeps the raw bytes.
func ParsePacket(body []byte) (Packet, error) {
	var pkt Packet
	if err := json.Unmarshal(body, &pkt); err != nil {
		return Packet{}, fmt.Errorf("decode packet: %w", err)
	}
	pkt.Raw = append(json.RawMessage(nil), body...)
	return pkt, nil
}

// Kind classifies the packet: a type field wins over an error field.
func (p Packet) Kind() PacketKind {
	switch {
	case p.Type != "":
		return KindNotification
	case p.Error != "":
		return KindError
	default:
		return KindResponse
	}
}

// Decode unmarshals the full packet body into dst.
func (p Packet) Decode(dst any) error {
	if len(p.Raw) == 0 {
		return fmt.Errorf("decode %s packet from %q: empty body", p.Kind(), p.From)
	}
	if err := json.Unmarshal(p.Raw, dst); err != nil {
		return fmt.Errorf("decode %s packet from %q: %w", p.Kind(), p.From, err)
	}
	return nil
}

// ActorError converts an error packet into an *ActorError.
func (p Packet) ActorError() *ActorError {
	return &ActorError{
		Actor:   p.From,
		Code:    p.Error,
		Message: p.Message,
		Body:    p.Raw,
	}
}

// Request is an outbound packet body. The dispatcher stamps "to".
type Request map[string]any

// To returns the addressed actor name, if set.
func (r Request) To() string {
	name, _ := r["to"].(string)
	return name
}

// Command returns the request type.
func (r Request) Command() string {
	name, _ := r["type"].(string)
	return name
}
