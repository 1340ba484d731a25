package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "opsdeck",
		Short: "opsdeck - deployment operation orchestrator",
		Long: `opsdeck provisions databases, endpoints and drains on a HAL-style
deployment API and tracks the asynchronous operations the backend runs for them.

Features:
  - Idempotent single and batch provisioning
  - Endpoint provisioning with certificate upload
  - Blocking deprovision
  - Operation polling and status aggregation
  - Dependency detection from app configuration
  - Local SQLite journal of workflow runs and actions`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default $OPSDECK_CONFIG or ./opsdeck.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newDBCommand())
	rootCmd.AddCommand(newDrainCommand())
	rootCmd.AddCommand(newEndpointCommand())
	rootCmd.AddCommand(newOpCommand())
	rootCmd.AddCommand(newDeprovisionCommand())
	rootCmd.AddCommand(newOpsCommand())
	rootCmd.AddCommand(newDepsCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newPolicyCommand())

	return rootCmd
}
