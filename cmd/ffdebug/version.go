package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/ffdebug/internal/version"
)

func newVersionCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			build := version.Read()
			if verbose {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), build.String())
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), build.Version)
			return err
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include build details")
	return cmd
}
