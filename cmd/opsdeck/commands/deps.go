package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/pkg/depgraph"
	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/normalize"
	"github.com/opsdeck/opsdeck/pkg/poller"
)

func newDepsCommand() *cobra.Command {
	var scope []string

	cmd := &cobra.Command{
		Use:   "deps <app-id>",
		Short: "Show the databases and apps an app's configuration references",
		Long: `Scan the current configuration of an app for references to other resources
and match them against what is loaded.

A value whose host is "<id>.<provider-domain>:" references database <id>. A
value containing "https://" references the app whose endpoint has exactly
that URL. References to resources outside the loaded environments are not
shown.`,
		Example: `  opsdeck deps 5
  opsdeck deps 5 --scope-env 4 --scope-env 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appID := args[0]
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			// Step 1: the app and its configuration
			app, err := fetchApp(ctx, rt, appID)
			if err != nil {
				return err
			}

			// Step 2: the environments references may point into
			envs := append([]string{app.EnvironmentID}, scope...)
			for _, envID := range envs {
				if envID == "" {
					continue
				}
				if err := poller.FetchEnvironment(ctx, rt.client, rt.store, envID); err != nil {
					return err
				}
			}

			// Step 3: resolve
			deps := depgraph.ResolveApp(rt.store, appID, rt.cfg.DependencyOptions()...)

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), deps)
			}

			out := cmd.OutOrStdout()
			if deps.Len() == 0 {
				fmt.Fprintf(out, "App %s has no resolvable dependencies\n", app.Handle)
				return nil
			}
			for _, d := range deps.Databases {
				fmt.Fprintf(out, "database  %-20s %-8s via %s\n", d.Database.Handle, d.Database.ID, d.Why.Key)
			}
			for _, d := range deps.Apps {
				fmt.Fprintf(out, "app       %-20s %-8s via %s (%s)\n", d.App.Handle, d.App.ID, d.Why.Key, d.Endpoint.URL())
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scope, "scope-env", nil, "additional environment to load (repeatable)")

	return cmd
}

// fetchApp loads an app and its current configuration into the store.
func fetchApp(ctx context.Context, rt *runtime, appID string) (engine.App, error) {
	var appResp normalize.AppResponse
	err := rt.client.Do(ctx, engine.Request{
		Method: http.MethodGet,
		Path:   "/apps/:id",
		Params: map[string]string{"id": appID},
	}, &appResp)
	if err != nil {
		return engine.App{}, fmt.Errorf("failed to fetch app %s: %s", appID, engine.Message(err))
	}
	app := normalize.App(appResp)
	rt.store.Apps.Add(app)

	if app.CurrentConfigurationID == "" {
		return app, nil
	}

	var cfgResp normalize.AppConfigurationResponse
	err = rt.client.Do(ctx, engine.Request{
		Method: http.MethodGet,
		Path:   "/configurations/:id",
		Params: map[string]string{"id": app.CurrentConfigurationID},
	}, &cfgResp)
	if err != nil {
		return app, fmt.Errorf("failed to fetch configuration of app %s: %s", appID, engine.Message(err))
	}
	rt.store.Configurations.Add(normalize.AppConfiguration(cfgResp))

	return app, nil
}
