// Package commands implements the shiori command tree.
package commands

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "/usr/local/etc/shiori/config.yaml"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "shiori",
		Short: "Embedding-based retrieval over a persisted vector collection",
		Long: `shiori loads a collection of pre-computed embeddings and their text records,
and answers nearest-neighbour queries over it from the command line or over HTTP.

Examples:
  shiori serve
  shiori search "what is the reverse charge rule"
  shiori search --context --k 4 "vat on imported services"
  shiori status --output json`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newSearchCmd(opts),
		newStatusCmd(opts),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
