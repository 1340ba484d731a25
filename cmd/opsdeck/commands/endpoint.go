package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/workflows"
)

func newEndpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Provision endpoints",
	}

	cmd.AddCommand(newEndpointCreateCommand())

	return cmd
}

func newEndpointCreateCommand() *cobra.Command {
	var (
		p        workflows.EndpointParams
		kind     string
		certFile string
		keyFile  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and provision an endpoint",
		Long: `Create an endpoint on a service and its provision operation.

A custom endpoint needs a certificate: pass --cert-id to use an existing one,
or --cert-file and --key-file to upload a new one first.`,
		Example: `  # Default endpoint
  opsdeck endpoint create --service 7

  # Custom domain with a new certificate
  opsdeck endpoint create --service 7 --env 3 --type custom --domain app.example.com \
    --cert-file cert.pem --key-file key.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Type = engine.EndpointType(kind)

			if certFile != "" || keyFile != "" {
				if certFile == "" || keyFile == "" {
					return fmt.Errorf("--cert-file and --key-file must be given together")
				}
				cert, err := os.ReadFile(certFile)
				if err != nil {
					return fmt.Errorf("failed to read certificate: %w", err)
				}
				key, err := os.ReadFile(keyFile)
				if err != nil {
					return fmt.Errorf("failed to read private key: %w", err)
				}
				p.Cert, p.PrivKey = string(cert), string(key)
			}

			log.Info().
				Str("service", p.ServiceID).
				Str("type", kind).
				Bool("upload_certificate", p.Cert != "").
				Msg("Creating endpoint")

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			return report(cmd, rt.orchestrator.CreateEndpoint(cmd.Context(), p))
		},
	}

	cmd.Flags().StringVar(&p.ServiceID, "service", "", "service ID")
	cmd.Flags().StringVar(&p.EnvironmentID, "env", "", "environment ID, required to upload a certificate")
	cmd.Flags().StringVar(&kind, "type", string(engine.EndpointTypeDefault), "default, managed or custom")
	cmd.Flags().StringVar(&p.CertID, "cert-id", "", "existing certificate ID")
	cmd.Flags().StringVar(&certFile, "cert-file", "", "PEM certificate chain to upload")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "PEM private key to upload")
	cmd.Flags().StringVar(&p.UserDomain, "domain", "", "user domain for managed and custom endpoints")
	cmd.Flags().BoolVar(&p.Internal, "internal", false, "only reachable inside the stack")
	cmd.Flags().StringVar(&p.ContainerPort, "port", "", "container port")
	cmd.Flags().StringSliceVar(&p.IPAllowlist, "allow", nil, "IP or CIDR allowed to connect (repeatable)")
	cmd.Flags().StringVar(&p.Platform, "platform", "", "alb or elb")
	cmd.MarkFlagRequired("service")

	return cmd
}
