package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/riftduel/duelsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string
	LogLevel  string
}

// NewRootCommand creates the duelsync root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "duelsync",
		Short: "Two-player pose and action replication",
		Long: `duelsync replicates head and hand poses plus action flags between two
participants through a small msgpack-rpc server.

Run "duelsync serve" once, then "duelsync client --participant 1" and
"duelsync client --participant 2" against it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(opts.ConfigDir); err != nil {
				// defaults stay in effect without a config file
				slog.Warn("Using default configuration", "dir", opts.ConfigDir, "error", err)
			}
			if opts.LogLevel != "" {
				config.Set("logLevel", opts.LogLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", ".", fmt.Sprintf("directory containing %s", config.FileName))
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logLevel (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewClientCommand(opts))

	return cmd
}
