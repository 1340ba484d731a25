package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/pkg/config"
)

func newInitCommand() *cobra.Command {
	var (
		apiURL      string
		token       string
		journalPath string
		natsURL     string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file and journal",
		Long: `Write an opsdeck configuration file and initialize the local SQLite journal.

The journal keeps the resources and operations opsdeck has seen, the audit
trail of every workflow run and every emitted action.`,
		Example: `  # Initialize against an API
  opsdeck init --api-url https://api.example.com

  # Write the config somewhere else, without a journal
  opsdeck init --api-url https://api.example.com --config /etc/opsdeck.yaml --journal ""`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultPath()
			}

			log.Info().
				Str("config", path).
				Str("journal", journalPath).
				Msg("Initializing opsdeck")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			// Step 1: build and validate the configuration
			cfg := config.Default()
			cfg.API.BaseURL = apiURL
			cfg.API.Token = token
			cfg.Journal.Path = journalPath
			cfg.Actions.NATSURL = natsURL
			cfg.ApplyEnv(os.LookupEnv)
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Step 2: write it
			if err := config.Write(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created config file: %s\n", path)

			// Step 3: initialize the journal
			if storeCfg, ok := cfg.Store(); ok {
				if dir := filepath.Dir(storeCfg.Path); dir != "." {
					if err := os.MkdirAll(dir, 0o700); err != nil {
						return fmt.Errorf("failed to create directory %s: %w", dir, err)
					}
				}
				journal, err := openJournal(cmd.Context(), storeCfg)
				if err != nil {
					return err
				}
				if err := journal.Close(); err != nil {
					return fmt.Errorf("failed to close journal: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Initialized journal: %s\n", storeCfg.Path)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nNext steps:\n")
			fmt.Fprintf(cmd.OutOrStdout(), "  opsdeck db create --env <id> --handle <name> --type postgresql\n")
			fmt.Fprintf(cmd.OutOrStdout(), "  opsdeck ops status database/<id>\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL (or $OPSDECK_API_URL)")
	cmd.Flags().StringVar(&token, "token", "", "API token (or $OPSDECK_TOKEN)")
	cmd.Flags().StringVar(&journalPath, "journal", "./data/opsdeck.db", "SQLite journal path, empty to disable")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "forward actions to this NATS server")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}
