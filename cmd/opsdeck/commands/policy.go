package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/pkg/policy"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and check admission policies",
		Long: `Admission policies are Rego modules evaluated before a workflow sends its
first request. A violation with severity error or critical stops the
workflow; a warning is shown and the workflow proceeds.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyCheckCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in and configured policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer func() { _ = tel.Shutdown(cmd.Context()) }()

			eng, err := newPolicyEngine(cmd.Context(), cfg.Policy, tel)
			if err != nil {
				return err
			}
			policies := eng.ListPolicies()

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), policies)
			}

			if !cfg.Policy.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Admission checks are disabled (policy.enabled: false)")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSEVERITY\tENABLED\tSOURCE")
			for _, p := range policies {
				source := p.Source
				if p.Builtin {
					source = "built-in"
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", p.Name, p.Severity, p.Enabled, source)
			}
			return w.Flush()
		},
	}
}

func newPolicyCheckCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Compile policy files",
		Long: `Compile .rego files and report the first error. Without arguments the
paths configured under policy.paths are checked.

With --watch the paths are recompiled whenever a .rego file changes, until
interrupted.`,
		Example: `  opsdeck policy check ./policies
  opsdeck policy check --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			paths := args
			if len(paths) == 0 {
				paths = cfg.Policy.Paths
			}
			if len(paths) == 0 {
				return fmt.Errorf("no policy paths given and policy.paths is empty")
			}

			tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer func() { _ = tel.Shutdown(ctx) }()
			logger := *tel.Logger.Zerolog()

			eng, err := policy.NewEngine(logger)
			if err != nil {
				return err
			}
			loader := policy.NewLoader(logger)

			check := func(policies []policy.Policy) error {
				if err := eng.Replace(ctx, policies); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %d policies compiled\n", len(policies))
				return nil
			}

			policies, err := loader.LoadFromPaths(ctx, paths)
			if err != nil {
				return err
			}
			if err := check(policies); err != nil && !watch {
				return err
			}
			if !watch {
				return nil
			}

			if err := loader.Watch(ctx, paths, check); err != nil {
				return err
			}
			defer func() { _ = loader.StopWatching() }()

			log.Info().Strs("paths", paths).Msg("Watching policies")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "recompile when policy files change")

	return cmd
}
