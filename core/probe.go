package core

import (
	"context"
	"fmt"

	"pkt.systems/ffdebug/internal/rdp"
	"pkt.systems/ffdebug/internal/transport"
	"pkt.systems/ffdebug/schema"
	"pkt.systems/pslog"
)

// ListTabs connects to a running browser, completes the greeting and
// returns its open tabs without attaching to any of them.
func ListTabs(ctx context.Context, cfg schema.LaunchConfig, dial transport.DialFunc) ([]schema.TabForm, error) {
	log := pslog.Ctx(ctx)
	conn, err := transport.Dial(ctx, cfg.Address(), transport.DialOptions{
		Timeout: cfg.DialTimeout,
		Logger:  log,
		Dial:    dial,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	disp := rdp.NewDispatcher(conn, log)
	defer disp.Close(schema.ErrStopping)
	root := rdp.NewRootActor(disp, rdp.RootConfig{})
	served := make(chan error, 1)
	go func() { served <- conn.Serve(disp.Dispatch) }()

	select {
	case <-root.Ready():
	case err := <-served:
		if err == nil {
			err = schema.ErrStopping
		}
		return nil, fmt.Errorf("browser closed before greeting: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	tabs, err := root.ListTabs(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("probe tabs", "addr", cfg.Address(), "count", len(tabs))
	return tabs, nil
}
