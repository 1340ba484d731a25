package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/pkg/workflows"
)

func newDrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Provision log and metric drains",
	}

	logCmd := &cobra.Command{Use: "log", Short: "Log drains"}
	logCmd.AddCommand(newLogDrainCreateCommand())

	metricCmd := &cobra.Command{Use: "metric", Short: "Metric drains"}
	metricCmd.AddCommand(newMetricDrainCreateCommand())

	cmd.AddCommand(logCmd, metricCmd)
	return cmd
}

func newLogDrainCreateCommand() *cobra.Command {
	var p workflows.LogDrainParams

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and provision a log drain",
		Example: `  opsdeck drain log create --env 3 --handle syslog --drain-type syslog_tls_tcp \
    --host logs.example.com --port 6514 --apps --databases`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("handle", p.Handle).
				Str("drain_type", p.DrainType).
				Msg("Provisioning log drain")

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			return report(cmd, rt.orchestrator.ProvisionLogDrain(cmd.Context(), p))
		},
	}

	cmd.Flags().StringVar(&p.EnvironmentID, "env", "", "environment ID")
	cmd.Flags().StringVar(&p.Handle, "handle", "", "drain handle")
	cmd.Flags().StringVar(&p.DrainType, "drain-type", "", "syslog_tls_tcp, https_post, elasticsearch_database, datadog, logdna, papertrail or sumologic")
	cmd.Flags().StringVar(&p.DrainHost, "host", "", "syslog host")
	cmd.Flags().StringVar(&p.DrainPort, "port", "", "syslog port")
	cmd.Flags().StringVar(&p.URL, "url", "", "destination URL")
	cmd.Flags().StringVar(&p.DatabaseID, "database", "", "Elasticsearch database ID")
	cmd.Flags().BoolVar(&p.DrainApps, "apps", true, "drain app logs")
	cmd.Flags().BoolVar(&p.DrainDatabases, "databases", true, "drain database logs")
	cmd.Flags().BoolVar(&p.DrainEphemeralSessions, "sessions", true, "drain ephemeral session logs")
	cmd.Flags().BoolVar(&p.DrainProxies, "proxies", false, "drain endpoint proxy logs")
	cmd.MarkFlagRequired("env")
	cmd.MarkFlagRequired("handle")
	cmd.MarkFlagRequired("drain-type")

	return cmd
}

func newMetricDrainCreateCommand() *cobra.Command {
	var p workflows.MetricDrainParams

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and provision a metric drain",
		Example: `  opsdeck drain metric create --env 3 --handle influx --drain-type influxdb_database --database 12
  opsdeck drain metric create --env 3 --handle dd --drain-type datadog --api-key $DD_API_KEY`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("handle", p.Handle).
				Str("drain_type", p.DrainType).
				Msg("Provisioning metric drain")

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			return report(cmd, rt.orchestrator.ProvisionMetricDrain(cmd.Context(), p))
		},
	}

	cmd.Flags().StringVar(&p.EnvironmentID, "env", "", "environment ID")
	cmd.Flags().StringVar(&p.Handle, "handle", "", "drain handle")
	cmd.Flags().StringVar(&p.DrainType, "drain-type", "", "influxdb_database, influxdb or datadog")
	cmd.Flags().StringVar(&p.DatabaseID, "database", "", "InfluxDB database ID")
	cmd.Flags().StringVar(&p.URL, "url", "", "InfluxDB address or Datadog series URL")
	cmd.Flags().StringVar(&p.Database, "influx-database", "", "InfluxDB database name")
	cmd.Flags().StringVar(&p.Username, "username", "", "InfluxDB username")
	cmd.Flags().StringVar(&p.Password, "password", "", "InfluxDB password")
	cmd.Flags().StringVar(&p.APIKey, "api-key", "", "Datadog API key")
	cmd.MarkFlagRequired("env")
	cmd.MarkFlagRequired("handle")
	cmd.MarkFlagRequired("drain-type")

	return cmd
}
