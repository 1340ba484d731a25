package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/workflows"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// report prints a workflow result and turns a failed run into a command
// error.
func report(cmd *cobra.Command, res *workflows.Result) error {
	out := cmd.OutOrStdout()

	if jsonOutput {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		printResult(out, res, "")
	}

	if res.Failed() {
		return fmt.Errorf("%w: %s", errWorkflowFailed, res.Workflow)
	}
	return nil
}

func printResult(w io.Writer, res *workflows.Result, indent string) {
	for _, action := range res.Actions {
		switch action.Type {
		case engine.ActionBannerSuccess:
			fmt.Fprintf(w, "%s✓ %s\n", indent, action.Message)
		case engine.ActionBannerNotice:
			fmt.Fprintf(w, "%sℹ %s\n", indent, action.Message)
		case engine.ActionBannerError:
			fmt.Fprintf(w, "%s✗ %s\n", indent, action.Message)
		}
	}

	ids := res.ResourceIDs()
	kinds := make([]string, 0, len(ids))
	for kind := range ids {
		if kind == engine.ResourceTypeOperation {
			continue
		}
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "%s  %-13s %s\n", indent, kind+":", ids[engine.ResourceType(kind)])
	}

	if engine.HasOperation(res.Operation) {
		fmt.Fprintf(w, "%s  %-13s %s (%s, %s)\n", indent, "operation:", res.Operation.ID, res.Operation.Type, res.Operation.Status)
	}

	for i, item := range res.Items {
		fmt.Fprintf(w, "%s  [%d]\n", indent, i+1)
		printResult(w, item, indent+"    ")
	}
}

func printOperation(w io.Writer, op engine.Operation) {
	fmt.Fprintf(w, "%-8s %-18s %-10s %s/%s  %s\n",
		op.ID, op.Type, op.Status, op.ResourceType, op.ResourceID, op.UpdatedAt.Format("2006-01-02 15:04:05"))
}
