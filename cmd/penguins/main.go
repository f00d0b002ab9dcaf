package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/penguins/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "penguins",
		Short: "Interactive Palmer Penguins dashboard",
		Long: `Penguins serves a reactive dashboard over the Palmer Penguins dataset.

Pick species, a numeric column and histogram bin counts in the sidebar;
every chart and table that depends on a changed input is redrawn and
pushed to the browser over a WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		serveCmd(),
		exportCmd(),
		versionCmd(),
	)
	return root
}

// info prints an indented message to stderr.
func info(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s\n", fmt.Sprintf(format, args...))
}
