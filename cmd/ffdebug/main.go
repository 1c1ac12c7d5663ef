package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

// argv0Commands maps installed binary names onto the subcommand they run,
// so editors can point at `ffdebug-dap` without passing arguments.
var argv0Commands = map[string]string{
	"ffdebug-dap":           "dap",
	"firefox-debug-adapter": "dap",
}

func main() {
	psi.Run(run)
}

func run(ctx context.Context) int {
	// In stdio mode stdout carries DAP frames; every log line goes to stderr.
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)

	root := newRootCmd()
	root.SetArgs(commandArgs(os.Args))
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("ffdebug failed", "err", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ffdebug",
		Short:         "Debug scripts running in Firefox from DAP editors",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newDAPCmd(), newTabsCmd(), newConfigCmd(), newVersionCmd())
	return root
}

// commandArgs drops argv[0] and prepends the subcommand its name implies.
func commandArgs(argv []string) []string {
	if len(argv) == 0 {
		return nil
	}
	if sub, ok := argv0Commands[filepath.Base(argv[0])]; ok {
		return append([]string{sub}, argv[1:]...)
	}
	return argv[1:]
}
