package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDeprovisionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deprovision <kind>/<id>",
		Short: "Deprovision a resource and wait for it",
		Long: `Create a deprovision operation and block until it succeeds or fails.

Apps, databases, endpoints, log drains and metric drains can be deprovisioned.
A resource that no longer exists is reported as already deprovisioned.`,
		Example: `  opsdeck deprovision database/12
  opsdeck deprovision endpoint/9`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}

			log.Info().Str("resource", args[0]).Msg("Deprovisioning")

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			return report(cmd, rt.orchestrator.Deprovision(cmd.Context(), ref))
		},
	}

	return cmd
}
