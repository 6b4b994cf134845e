package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/repl"
)

var activityCmd = storeCommand(&cobra.Command{
	Use:   "activity",
	Short: "Show the audit trail",
	Long: `Display recent events from the audit trail.

Every turn records its start, each reasoning step, and its completion.
Approval requests and resolutions, snapshot reloads and retention cleanups
are recorded too.

Examples:
  riskpilot activity                          # Show last 20 events
  riskpilot activity -n 50                    # Show last 50 events
  riskpilot activity --run 1b4e28ba           # Show every event of one turn
  riskpilot activity --type approval_resolved # Show only approval decisions
  riskpilot activity --severity warning       # Show only warnings`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		runID, _ := cmd.Flags().GetString("run")
		eventType, _ := cmd.Flags().GetString("type")
		severity, _ := cmd.Flags().GetString("severity")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := cmd.Context()
		byRun := runID != "" && eventType == "" && severity == ""
		var (
			list []*events.Event
			err  error
		)
		switch {
		case byRun:
			list, err = store.GetEventsByRun(ctx, runID)
		case runID == "" && eventType == "" && severity == "":
			list, err = store.GetRecentEvents(ctx, limit)
		default:
			list, err = store.GetEvents(ctx, events.EventFilter{
				RunID:    runID,
				Type:     events.EventType(eventType),
				Severity: events.EventSeverity(severity),
				Limit:    limit,
			})
		}
		if err != nil {
			return fmt.Errorf("failed to fetch events: %w", err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if list == nil {
				list = []*events.Event{}
			}
			return writeJSON(out, list)
		}

		// Run queries come back oldest first; the others newest first
		if !byRun {
			for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
				list[i], list[j] = list[j], list[i]
			}
		}
		fmt.Fprintln(out)
		repl.PrintEvents(out, list)
		fmt.Fprintln(out)
		return nil
	},
})

func init() {
	activityCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show")
	activityCmd.Flags().StringP("run", "r", "", "Filter events by run ID")
	activityCmd.Flags().StringP("type", "t", "", "Filter by event type (e.g., thinking_step, approval_resolved)")
	activityCmd.Flags().StringP("severity", "s", "", "Filter by severity (info, warning, error, critical)")
	activityCmd.Flags().Bool("json", false, "Print events as JSON")
	rootCmd.AddCommand(activityCmd)
}
