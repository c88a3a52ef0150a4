// Package main implements clarvoyd, the Clarvoy decision service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clarvoyd",
		Short: "Clarvoy group decision service",
		Long: `clarvoyd serves the Clarvoy API: decisions, blind judgments, noise
measurement, debate, attachments and AI coaching.

Examples:
  # Start the server with defaults and CLARVOY_* environment overrides
  clarvoyd serve

  # Start with a config file
  clarvoyd serve --config clarvoy.yaml

  # Measure the noise of a set of scores
  clarvoyd noise 3 7 9 4`,
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newNoiseCmd())
	return root
}
