package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opsdeck/opsdeck/pkg/workflows"
)

func newDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Provision databases",
	}

	cmd.AddCommand(newDBCreateCommand())
	cmd.AddCommand(newDBBatchCommand())

	return cmd
}

func newDBCreateCommand() *cobra.Command {
	var params workflows.DatabaseParams

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and provision a database",
		Long: `Create a database and its provision operation.

A database with the same handle in the same environment is reused. When it
already has a provision operation, nothing is created and a notice is shown.`,
		Example: `  opsdeck db create --env 3 --handle pg --type postgresql --disk-size 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("handle", params.Handle).
				Str("environment", params.EnvironmentID).
				Str("type", params.Type).
				Msg("Provisioning database")

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			return report(cmd, rt.orchestrator.ProvisionDatabase(cmd.Context(), params))
		},
	}

	addDatabaseFlags(cmd, &params)
	cmd.MarkFlagRequired("env")
	cmd.MarkFlagRequired("handle")
	cmd.MarkFlagRequired("type")

	return cmd
}

func addDatabaseFlags(cmd *cobra.Command, p *workflows.DatabaseParams) {
	cmd.Flags().StringVar(&p.EnvironmentID, "env", "", "environment ID")
	cmd.Flags().StringVar(&p.Handle, "handle", "", "database handle")
	cmd.Flags().StringVar(&p.Type, "type", "", "database type, e.g. postgresql or redis")
	cmd.Flags().StringVar(&p.DatabaseImageID, "image", "", "database image ID")
	cmd.Flags().IntVar(&p.ContainerSize, "container-size", 0, "container size in MB")
	cmd.Flags().IntVar(&p.DiskSize, "disk-size", 0, "disk size in GB")
	cmd.Flags().StringVar(&p.InstanceProfile, "instance-profile", "", "instance profile")
}

// batchFile is the document read by "db batch".
type batchFile struct {
	// EnvironmentID applies to every item that does not set its own.
	EnvironmentID string                     `yaml:"environment_id"`
	Databases     []workflows.DatabaseParams `yaml:"databases"`
}

func readBatchFile(path string) ([]workflows.DatabaseParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var doc batchFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}

	for i := range doc.Databases {
		if doc.Databases[i].EnvironmentID == "" {
			doc.Databases[i].EnvironmentID = doc.EnvironmentID
		}
	}
	return doc.Databases, nil
}

func newDBBatchCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Provision several databases concurrently",
		Long: `Provision every database listed in a YAML file concurrently.

Every item runs to completion even when others fail. Databases created before
a failed provision operation are left in place.`,
		Example: `  # databases.yaml
  environment_id: "3"
  databases:
    - handle: pg
      type: postgresql
      disk_size: 10
    - handle: cache
      type: redis

  opsdeck db batch --file databases.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readBatchFile(file)
			if err != nil {
				return err
			}

			log.Info().
				Str("file", file).
				Int("databases", len(items)).
				Msg("Provisioning database batch")

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			return report(cmd, rt.orchestrator.ProvisionDatabases(cmd.Context(), items))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file listing the databases")
	cmd.MarkFlagRequired("file")

	return cmd
}
