package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/poller"
)

func newOpsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Inspect operations",
	}

	cmd.AddCommand(newOpsStatusCommand())
	cmd.AddCommand(newOpsWatchCommand())
	cmd.AddCommand(newOpsHistoryCommand())

	return cmd
}

func newOpsStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <kind>/<id>...",
		Short: "Show the combined status of one or more resources",
		Long: `Refresh the operations of every given resource and derive one status for
all of them.

Operations are scanned from least to most recently updated. The first queued,
running or failed operation decides the status. When every operation
succeeded the status is succeeded; without operations it is unknown.`,
		Example: `  opsdeck ops status app/5 vhost/9`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := make([]engine.ResourceRef, 0, len(args))
			for _, arg := range args {
				ref, err := parseRef(arg)
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			for _, ref := range refs {
				if _, err := poller.FetchResourceOperations(cmd.Context(), rt.client, rt.store, ref); err != nil {
					return fmt.Errorf("failed to fetch operations of %s/%s: %s", ref.Type, ref.ID, engine.Message(err))
				}
			}

			status, since := engine.ResolveWorkflowStatus(rt.store, time.Now, refs...)

			if jsonOutput {
				var ops []engine.Operation
				for _, ref := range refs {
					ops = append(ops, rt.store.SelectOperationsByResource(ref.Type, ref.ID)...)
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"status":     status,
					"since":      since,
					"operations": ops,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status: %s since %s\n\n", status, since.Format(time.RFC3339))
			for _, ref := range refs {
				for _, op := range rt.store.SelectOperationsByResource(ref.Type, ref.ID) {
					printOperation(out, op)
				}
			}
			return nil
		},
	}

	return cmd
}

func newOpsWatchCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <operation-id>",
		Short: "Poll an operation until it succeeds or fails",
		Example: `  opsdeck ops watch 88
  opsdeck ops watch 88 --interval 2s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opID := args[0]

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			if interval <= 0 {
				interval = rt.cfg.Polling.OperationInterval
			}

			log.Info().
				Str("operation", opID).
				Dur("interval", interval).
				Msg("Watching operation")

			var last engine.OperationStatus
			done := make(chan engine.Operation, 1)
			rt.supervisor.Poll(poller.Key(engine.ResourceTypeOperation, opID), func(ctx context.Context) error {
				op, err := poller.FetchOperation(ctx, rt.client, rt.store, opID)
				if err != nil {
					log.Warn().Err(err).Str("operation", opID).Msg("Failed to refresh operation")
					return nil
				}
				if op.Status != last {
					last = op.Status
					printOperation(cmd.OutOrStdout(), op)
				}
				if op.Status.IsTerminal() {
					done <- op
					return poller.ErrStop
				}
				return nil
			}, interval)

			select {
			case op := <-done:
				if op.Status == engine.OperationStatusFailed {
					return fmt.Errorf("operation %s failed", op.ID)
				}
				return nil
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default polling.operation_interval)")

	return cmd
}

func newOpsHistoryCommand() *cobra.Command {
	var (
		workflow string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded workflow runs",
		Example: `  opsdeck ops history
  opsdeck ops history --workflow provision_database --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			if rt.journal == nil {
				return fmt.Errorf("the journal is disabled (set journal.path)")
			}

			var filter *string
			if workflow != "" {
				filter = &workflow
			}
			entries, err := rt.journal.ListWorkflowAudits(cmd.Context(), filter, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), entries)
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				msg := ""
				switch {
				case e.Error != nil:
					msg = *e.Error
				case e.Notice != nil:
					msg = *e.Notice
				}
				fmt.Fprintf(out, "%s  %-24s %-9s %s  %s\n",
					e.StartedAt.Format("2006-01-02 15:04:05"), e.Workflow, e.Outcome, e.ID, msg)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workflow, "workflow", "", "only runs of this workflow")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	return cmd
}
