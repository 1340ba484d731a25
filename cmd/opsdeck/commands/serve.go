package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/poller"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var (
		envs       []string
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Track operations in the background and expose metrics",
		Long: `Run until interrupted, keeping operation state current.

serve resumes polling every unfinished operation found in the journal, sweeps
the operations of each --env every polling.environment_interval, and serves
/metrics and /healthz.`,
		Example: `  opsdeck serve --env 3 --env 4
  opsdeck serve --listen :9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			rt.publisher.Subscribe(func(a engine.Action) {
				log.Info().
					Str("resource", string(a.ResourceType)+"/"+a.ResourceID).
					Interface("data", a.Data).
					Msg("Operation finished")
			}, engine.ActionFilter{Types: []engine.ActionType{engine.ActionOperationCompleted}})

			// Step 1: resume unfinished operations
			resumed := 0
			for _, op := range rt.store.Operations.SelectAsList() {
				if op.Status.IsTerminal() {
					continue
				}
				rt.supervisor.PollOperation(poller.Key(engine.ResourceTypeOperation, op.ID), op.ID, rt.cfg.Polling.OperationInterval)
				resumed++
			}

			// Step 2: environment sweeps
			for _, envID := range envs {
				rt.supervisor.PollEnvironmentOperations(poller.Key(engine.ResourceTypeEnvironment, envID), envID, rt.cfg.Polling.EnvironmentInterval)
			}

			// Step 3: observability server
			metricsCfg := rt.cfg.Telemetry.Metrics
			if listenAddr != "" {
				metricsCfg.ListenAddress = listenAddr
			}
			checks := map[string]telemetry.HealthCheck{}
			if rt.journal != nil {
				checks["journal"] = rt.journal.HealthCheck
			}
			server := telemetry.NewServer(rt.tel.Metrics, metricsCfg, checks)

			errCh := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			log.Info().
				Str("listen", metricsCfg.ListenAddress).
				Strs("environments", envs).
				Int("resumed_operations", resumed).
				Msg("Serving")

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringSliceVar(&envs, "env", nil, "environment whose operations are swept (repeatable)")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default telemetry.metrics.listen_address)")

	return cmd
}
