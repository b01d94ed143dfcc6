// Command server runs the research analysis task service and its operator
// tooling: the HTTP API with the task runner and health monitor, schema
// migrations, one-off health sweeps and task inspection.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	output     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Research analysis task service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOutput(opts.output)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json or yaml")

	rootCmd.AddCommand(
		serveCmd(opts),
		migrateCmd(opts),
		sweepCmd(opts),
		tasksCmd(opts),
		servicesCmd(opts),
	)
	return rootCmd
}
