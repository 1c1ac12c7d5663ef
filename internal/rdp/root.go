package rdp

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/ffdebug/internal/urlmap"
	"pkt.systems/ffdebug/schema"
)

// RootName is the well-known name of the root actor.
const RootName = "root"

type rootState int

const (
	rootInitializing rootState = iota
	rootSelectingTab
	rootReady
)

func (s rootState) String() string {
	switch s {
	case rootSelectingTab:
		return "selecting-tab"
	case rootReady:
		return "ready"
	default:
		return "initializing"
	}
}

// RootConfig configures session bring-up.
type RootConfig struct {
	// Target is the URL of the tab to attach to. An empty target connects
	// without selecting a tab.
	Target   string
	Resolver urlmap.Resolver
	Listener Listener
}

// RootActor drives bring-up: the server greeting marks the connection live,
// then the tab matching the target is selected and its console and tab
// actors are registered.
type RootActor struct {
	Base
	cfg RootConfig

	stateMu   sync.Mutex
	state     rootState
	connected chan struct{}
	ready     chan struct{}
	console   *ConsoleActor
	tab       *TabActor
}

// NewRootActor constructs the root actor and registers it with d.
func NewRootActor(d *Dispatcher, cfg RootConfig) *RootActor {
	if cfg.Listener == nil {
		cfg.Listener = nopListener{}
	}
	a := &RootActor{
		cfg:       cfg,
		connected: make(chan struct{}),
		ready:     make(chan struct{}),
	}
	a.bind(d, RootName)
	d.AddActor(a)
	return a
}

// Connected is closed once the server greeting arrived.
func (a *RootActor) Connected() <-chan struct{} {
	return a.connected
}

// Ready is closed once the target tab's actors are registered.
func (a *RootActor) Ready() <-chan struct{} {
	return a.ready
}

// Tab returns the selected tab actor, or nil before Ready.
func (a *RootActor) Tab() *TabActor {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.tab
}

// ProcessCommand treats the first inbound packet as the connection greeting.
func (a *RootActor) ProcessCommand(pkt schema.Packet) bool {
	a.stateMu.Lock()
	state := a.state
	if state == rootInitializing {
		if a.cfg.Target != "" {
			a.state = rootSelectingTab
		} else {
			a.state = rootReady
		}
	}
	next := a.state
	a.stateMu.Unlock()

	if state != rootInitializing {
		return a.process(pkt, nil, nil)
	}
	a.log.Debug("rdp root connected", "state", next.String(), "kind", pkt.Kind().String())
	close(a.connected)
	if next == rootSelectingTab {
		go a.selectTab()
	} else {
		close(a.ready)
	}
	return true
}

// ListTabs returns the browser's open tabs.
func (a *RootActor) ListTabs(ctx context.Context) ([]schema.TabForm, error) {
	pkt, err := a.Request(ctx, schema.Request{"type": "listTabs"})
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	var reply schema.ListTabsReply
	if err := pkt.Decode(&reply); err != nil {
		return nil, err
	}
	return reply.Tabs, nil
}

func (a *RootActor) selectTab() {
	ctx := context.Background()
	tabs, err := a.ListTabs(ctx)
	if err != nil {
		a.cfg.Listener.OnFatal(err)
		return
	}
	var match *schema.TabForm
	for i := range tabs {
		if tabs[i].URL == a.cfg.Target {
			match = &tabs[i]
			break
		}
	}
	if match == nil {
		a.log.Warn("rdp no tab matches target", "target", a.cfg.Target, "tabs", len(tabs))
		a.cfg.Listener.OnFatal(fmt.Errorf("%w: %s", schema.ErrTabNotFound, a.cfg.Target))
		return
	}

	console := NewConsoleActor(a.d, match.ConsoleActor, a.cfg.Listener)
	tab := NewTabActor(a.d, match.Actor, a.cfg.Resolver, a.cfg.Listener)
	a.d.AddActor(console)
	a.d.AddActor(tab)

	a.stateMu.Lock()
	a.console = console
	a.tab = tab
	a.state = rootReady
	a.stateMu.Unlock()
	a.log.Info("rdp tab selected", "tab", match.Actor, "url", match.URL, "title", match.Title)
	close(a.ready)

	if err := tab.Attach(); err != nil {
		a.cfg.Listener.OnFatal(err)
		return
	}
	if err := console.Start(ctx); err != nil {
		a.log.Warn("rdp console start failed", "err", err)
	}
}
