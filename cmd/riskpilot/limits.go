package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/repl"
	"github.com/riskpilot/riskpilot/internal/riskctx"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show the limit monitor, hedge limits and fund-wide limit checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		auditor, err := newAuditor(appCfg)
		if err != nil {
			return err
		}
		provider, _, err := newContextProvider(appCfg, nil, logger)
		if err != nil {
			return err
		}
		rc := provider.Current()
		global := compliance.CheckGlobal(rc, appCfg.Compliance.Global)

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, map[string]interface{}{
				"summary":      riskctx.Summarize(rc.Limits),
				"hedge_limits": auditor.Limits(),
				"global":       global,
			})
		}

		fmt.Fprintln(out)
		repl.PrintLimits(out, rc, auditor.Limits())

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Fprintf(out, "\n%s\n", cyan("Fund-wide Limits"))
		for _, g := range global {
			mark := color.GreenString("✓")
			if !g.Passed {
				mark = color.RedString("✗")
			}
			fmt.Fprintf(out, "  %s %-24s %s (%s %s)\n", mark, g.Name,
				riskctx.FormatPct(g.Current, 1), g.Bound, riskctx.FormatPct(g.Limit, 1))
		}
		fmt.Fprintln(out)
		return nil
	},
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show funded status, durations and allocation of the risk context",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		provider, _, err := newContextProvider(appCfg, nil, logger)
		if err != nil {
			return err
		}
		rc := provider.Current()

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, rc)
		}
		fmt.Fprintln(out)
		repl.PrintContext(out, rc)
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	limitsCmd.Flags().Bool("json", false, "Print limits as JSON")
	contextCmd.Flags().Bool("json", false, "Print the snapshot as JSON")
	rootCmd.AddCommand(limitsCmd, contextCmd)
}
