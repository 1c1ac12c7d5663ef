package rdp

import (
	"context"
	"fmt"
	"strings"

	"pkt.systems/ffdebug/schema"
)

var consoleListeners = []string{"PageError", "ConsoleAPI"}

// ConsoleActor forwards a tab's console output to the listener.
type ConsoleActor struct {
	Base
	listener Listener
}

// NewConsoleActor constructs a console proxy. Register it before Start.
func NewConsoleActor(d *Dispatcher, name string, listener Listener) *ConsoleActor {
	if listener == nil {
		listener = nopListener{}
	}
	a := &ConsoleActor{listener: listener}
	a.bind(d, name)
	return a
}

// Start subscribes to console and page-error events and replays the
// messages logged before the subscription.
func (a *ConsoleActor) Start(ctx context.Context) error {
	if _, err := a.Request(ctx, schema.Request{
		"type":      "startListeners",
		"listeners": consoleListeners,
	}); err != nil {
		return fmt.Errorf("start console listeners: %w", err)
	}
	pkt, err := a.Request(ctx, schema.Request{
		"type":         "getCachedMessages",
		"messageTypes": consoleListeners,
	})
	if err != nil {
		return fmt.Errorf("get cached messages: %w", err)
	}
	var reply schema.CachedMessagesReply
	if err := pkt.Decode(&reply); err != nil {
		return err
	}
	for _, msg := range reply.Messages {
		switch msg.Kind {
		case "ConsoleAPI", "consoleAPICall":
			a.listener.OnOutput(consoleOutput(msg.Console()))
		case "PageError", "pageError":
			a.listener.OnOutput(pageErrorOutput(msg.PageError()))
		}
	}
	a.log.Debug("rdp console replayed", "messages", len(reply.Messages))
	return nil
}

func (a *ConsoleActor) ProcessCommand(pkt schema.Packet) bool {
	return a.process(pkt, a.notify, nil)
}

func (a *ConsoleActor) notify(pkt schema.Packet) bool {
	switch pkt.Type {
	case "consoleAPICall":
		var body struct {
			Message schema.ConsoleMessage `json:"message"`
		}
		if err := pkt.Decode(&body); err != nil {
			a.log.Warn("rdp console message dropped", "err", err)
			return true
		}
		a.listener.OnOutput(consoleOutput(body.Message))
		return true
	case "pageError", "pageErrorCall":
		var body struct {
			PageError schema.PageError `json:"pageError"`
		}
		if err := pkt.Decode(&body); err != nil {
			a.log.Warn("rdp page error dropped", "err", err)
			return true
		}
		a.listener.OnOutput(pageErrorOutput(body.PageError))
		return true
	}
	return false
}

func consoleCategory(level string) schema.OutputCategory {
	switch level {
	case "error":
		return schema.OutputStderr
	case "warn", "warning":
		return schema.OutputConsole
	default:
		return schema.OutputStdout
	}
}

func consoleOutput(msg schema.ConsoleMessage) (schema.OutputCategory, string) {
	parts := make([]string, 0, len(msg.Arguments))
	for _, arg := range msg.Arguments {
		parts = append(parts, arg.Text())
	}
	return consoleCategory(msg.Level), strings.Join(parts, " ") + "\n"
}

func pageErrorOutput(msg schema.PageError) (schema.OutputCategory, string) {
	category := schema.OutputStderr
	if msg.Warning {
		category = schema.OutputConsole
	}
	text := msg.ErrorMessage.Text()
	if msg.SourceName != "" {
		text = fmt.Sprintf("%s (%s:%d)", text, msg.SourceName, msg.LineNumber)
	}
	return category, text + "\n"
}
