// Command spawnpool warms object pools from a manifest and serves their
// status over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/app.yaml"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "spawnpool",
		Short:         "Pooled clone registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Warm the configured pools and serve /status and /metrics until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := newSignalContext(cmd.Context())
			defer cancel()
			return run(ctx, cancel, resolveConfigPath(configPath), cmd.OutOrStdout())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printConfig(cmd.Context(), resolveConfigPath(configPath), cmd.OutOrStdout())
		},
	})
	return root
}
