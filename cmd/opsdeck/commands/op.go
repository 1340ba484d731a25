package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/workflows"
)

func newOpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "op",
		Short: "Run operations against resources",
	}

	cmd.AddCommand(newOpRunCommand())

	return cmd
}

func newOpRunCommand() *cobra.Command {
	var (
		opType         string
		containerCount int
		params         engine.CreateOperationParams
		env            []string
		wait           bool
	)

	cmd := &cobra.Command{
		Use:   "run <kind>/<id>",
		Short: "Create an operation",
		Long: `Create an operation such as restart, scale, backup, configure or deploy
against an existing resource.

Without --wait the operation is created and the command returns. With --wait
it blocks until the operation succeeds or fails.`,
		Example: `  opsdeck op run database/12 --type backup --wait
  opsdeck op run database/12 --type scale --disk-size 20 --container-size 1024
  opsdeck op run app/5 --type configure --env FOO=bar --env BAZ=qux
  opsdeck op run app/5 --type deploy --git-ref main`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}

			params.Type = engine.OperationType(opType)
			if cmd.Flags().Changed("container-count") {
				params.ContainerCount = &containerCount
			}
			if len(env) > 0 {
				params.Env = make(map[string]string, len(env))
				for _, kv := range env {
					k, v, ok := strings.Cut(kv, "=")
					if !ok || k == "" {
						return fmt.Errorf("invalid --env %q: expected KEY=VALUE", kv)
					}
					params.Env[k] = v
				}
			}

			log.Info().
				Str("resource", args[0]).
				Str("type", opType).
				Bool("wait", wait).
				Msg("Running operation")

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			return report(cmd, rt.orchestrator.RunOperation(cmd.Context(), workflows.OperationParams{
				Resource:  ref,
				Operation: params,
				Wait:      wait,
			}))
		},
	}

	cmd.Flags().StringVar(&opType, "type", "", "operation type")
	cmd.Flags().IntVar(&containerCount, "container-count", 0, "container count for scale")
	cmd.Flags().IntVar(&params.ContainerSize, "container-size", 0, "container size in MB for scale")
	cmd.Flags().IntVar(&params.DiskSize, "disk-size", 0, "disk size in GB for scale")
	cmd.Flags().StringVar(&params.InstanceProfile, "instance-profile", "", "instance profile for scale")
	cmd.Flags().StringArrayVar(&env, "env", nil, "KEY=VALUE for configure (repeatable)")
	cmd.Flags().StringVar(&params.GitRef, "git-ref", "", "git ref for deploy")
	cmd.Flags().StringVar(&params.DockerRef, "docker-ref", "", "docker image for deploy")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the operation is terminal")
	cmd.MarkFlagRequired("type")

	return cmd
}
