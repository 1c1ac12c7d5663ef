package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pkt.systems/ffdebug/core"
	"pkt.systems/ffdebug/internal/appconfig"
	"pkt.systems/ffdebug/schema"
)

func newTabsCmd() *cobra.Command {
	var cfgPath string
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "List the tabs of a running browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			launch := cfg.LaunchDefaults()
			if host != "" {
				launch.Host = host
			}
			if port != 0 {
				launch.Port = port
			}
			if launch.DialTimeout <= 0 {
				launch.DialTimeout = schema.DefaultDialTimeout
			}
			tabs, err := core.ListTabs(cmd.Context(), launch, nil)
			if err != nil {
				return err
			}
			return printTabs(cmd, tabs)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().StringVar(&host, "host", "", "debugger server host")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "debugger server port")
	return cmd
}

func printTabs(cmd *cobra.Command, tabs []schema.TabForm) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ACTOR\tTITLE\tURL")
	for _, tab := range tabs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", tab.Actor, tab.Title, tab.URL)
	}
	return w.Flush()
}
