package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riskpilot/riskpilot/internal/api"
	"github.com/riskpilot/riskpilot/internal/repl"
	"github.com/riskpilot/riskpilot/internal/types"
)

var pendingCmd = storeCommand(&cobra.Command{
	Use:   "pending",
	Short: "List hedge proposals awaiting approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		all, _ := cmd.Flags().GetBool("all")

		var (
			list []*types.PendingApproval
			err  error
		)
		if all {
			list, err = store.ListApprovals(cmd.Context(), "")
		} else {
			list, err = store.ListApprovals(cmd.Context(), types.ApprovalPending)
		}
		if err != nil {
			return fmt.Errorf("failed to list approvals: %w", err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if list == nil {
				list = []*types.PendingApproval{}
			}
			return writeJSON(out, list)
		}
		fmt.Fprintln(out)
		repl.PrintApprovals(out, list)
		fmt.Fprintln(out)
		return nil
	},
})

func resolveCommand(use, short string, decision types.Decision) *cobra.Command {
	cmd := storeCommand(&cobra.Command{
		Use:   use + " <approval-id> [reason]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			a, err := newApp(appCfg, store, logger)
			if err != nil {
				return err
			}
			res, err := a.gate.Resolve(cmd.Context(), args[0], decision, actor, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, api.NewTurnResponse(res))
			}
			fmt.Fprintln(out)
			repl.PrintStep(out, res.Trace[len(res.Trace)-1])
			printResult(out, res)
			return nil
		},
	})
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	return cmd
}

var (
	approveCmd = resolveCommand("approve", "Approve a held proposal at its recommended ratio", types.DecisionApproved)
	rejectCmd  = resolveCommand("reject", "Reject a held proposal, keeping the current configuration", types.DecisionRejected)
)

func init() {
	pendingCmd.Flags().Bool("json", false, "Print approvals as JSON")
	pendingCmd.Flags().Bool("all", false, "Include resolved approvals")
	rootCmd.AddCommand(pendingCmd, approveCmd, rejectCmd)
}
