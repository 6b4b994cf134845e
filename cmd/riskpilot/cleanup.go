package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/riskpilot/riskpilot/internal/storage"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cleanup and maintenance commands",
	Long:  `Commands for cleaning up old data and performing database maintenance.`,
}

var cleanupEventsCmd = storeCommand(&cobra.Command{
	Use:   "events",
	Short: "Apply the event retention policy once",
	Long: `Delete audit events past the retention policy.

Events older than events.retention_days are deleted, except error and
critical events, which are kept for events.retention_critical_days. Runs
with more than events.per_run_limit events lose their oldest non-critical
events, and the oldest non-critical events go once the table nears
events.global_limit.

'riskpilot serve' applies the same policy every events.cleanup_interval_hours.

Examples:
  riskpilot cleanup events
  riskpilot cleanup events --vacuum
  RISKPILOT_EVENT_RETENTION_DAYS=7 riskpilot cleanup events`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg.Events
		if cmd.Flags().Changed("vacuum") {
			cfg.CleanupVacuum, _ = cmd.Flags().GetBool("vacuum")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid event retention configuration: %w", err)
		}

		res, err := storage.RunEventCleanup(cmd.Context(), store, cfg, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(out, "%s Deleted %d events (%d by age, %d over run limit, %d over global limit)\n",
			green("✓"), res.Total(), res.TimeBased, res.PerRun, res.GlobalLimit)
		if res.VacuumRan {
			fmt.Fprintln(out, "  Database vacuumed")
		}
		fmt.Fprintf(out, "  %d events remaining\n", res.Remaining)
		return nil
	},
})

func init() {
	cleanupEventsCmd.Flags().Bool("vacuum", false, "Run VACUUM after deleting (default: events.cleanup_vacuum)")
	cleanupCmd.AddCommand(cleanupEventsCmd)
	rootCmd.AddCommand(cleanupCmd)
}
