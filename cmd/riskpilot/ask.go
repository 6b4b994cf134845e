package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/riskpilot/riskpilot/internal/api"
	"github.com/riskpilot/riskpilot/internal/gates"
	"github.com/riskpilot/riskpilot/internal/repl"
	"github.com/riskpilot/riskpilot/internal/types"
)

var askCmd = storeCommand(&cobra.Command{
	Use:   "ask <question>",
	Short: "Run one copilot turn",
	Long: `Run a single turn through the copilot and print its reasoning steps and answer.

Hedge proposals that breach a limit are held for approval under the governed
policy. Resolve them with 'riskpilot approve' or 'riskpilot reject'.

Examples:
  riskpilot ask "What happens if rates rise 100bp?"
  riskpilot ask "Set the FX hedge ratio to 95%"
  riskpilot ask --json "Are we within our allocation limits?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		a, err := newApp(appCfg, store, logger)
		if err != nil {
			return err
		}
		rc := a.context.Current()
		if rc == nil {
			return fmt.Errorf("no risk context loaded")
		}

		out := cmd.OutOrStdout()
		req := gates.Request{
			Text:    strings.Join(args, " "),
			Context: rc,
			Actor:   actor,
		}
		if !asJSON && !quiet {
			req.OnStep = func(step types.ThinkingStep) { repl.PrintStep(out, step) }
		}

		res, err := a.gate.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, api.NewTurnResponse(res))
		}
		printResult(out, res)
		return nil
	},
})

func printResult(w io.Writer, res *gates.Result) {
	fmt.Fprintf(w, "\n%s\n\n", res.Response)
	if res.RequiresApproval && res.Pending != nil {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(w, "%s riskpilot approve %s  or  riskpilot reject %s\n\n",
			yellow("Awaiting approval:"), res.Pending.ID, res.Pending.ID)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	askCmd.Flags().Bool("json", false, "Print the result as JSON")
	askCmd.Flags().BoolP("quiet", "q", false, "Print only the answer, not the reasoning steps")
	rootCmd.AddCommand(askCmd)
}
