package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/ffdebug"
	"pkt.systems/ffdebug/internal/appconfig"
	"pkt.systems/ffdebug/internal/dapserver"
	"pkt.systems/ffdebug/internal/version"
	"pkt.systems/pslog"
)

func newDAPCmd() *cobra.Command {
	var cfgPath string
	var listen bool
	var addr string
	var firefox string
	var port int
	var trace bool
	cmd := &cobra.Command{
		Use:   "dap",
		Short: "Serve the Debug Adapter Protocol on stdio or TCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if firefox != "" {
				cfg.Browser.RuntimeExecutable = firefox
			}
			if port != 0 {
				cfg.Debugger.Port = port
			}
			if trace {
				cfg.Logging.ProtocolTrace = true
			}
			if addr != "" {
				cfg.DAP.Addr = addr
				listen = true
			}
			srv, err := ffdebug.New(ffdebug.ServerConfig{
				DAP: dapserver.Config{
					Addr:           cfg.DAP.Addr,
					RequestTimeout: cfg.RequestTimeout(),
					Version:        version.Current(),
				},
				Defaults: cfg.LaunchDefaults(),
			}, ffdebug.ServerDeps{Logger: logger})
			if err != nil {
				return err
			}
			if !listen {
				logger.Info("dap stdio", "version", version.Current())
				return srv.ServeConn(cmd.Context(), stdio{})
			}
			if err := srv.Start(cmd.Context()); err != nil {
				return err
			}
			go func() {
				<-cmd.Context().Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Stop(stopCtx)
			}()
			return srv.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().BoolVarP(&listen, "listen", "l", false, "listen on the configured TCP address instead of stdio")
	cmd.Flags().StringVar(&addr, "addr", "", "TCP listen address (implies --listen)")
	cmd.Flags().StringVar(&firefox, "firefox", "", "browser executable to launch when the editor does not name one")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "browser debugger server port")
	cmd.Flags().BoolVar(&trace, "trace", false, "mirror protocol diagnostics to the editor console")
	return cmd
}

// stdio is the editor stream when the adapter runs as a child process.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdio) Close() error                { return nil }
