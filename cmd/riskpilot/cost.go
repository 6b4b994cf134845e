package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/riskpilot/riskpilot/internal/cost"
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Show model token budget and usage",
	Long: `Display the model token budget for the current window and all-time usage.

Usage is read from the persisted budget state, so it reflects every process
that shares cost.persist_state_path. When the budget is exceeded, model calls
are skipped and turns fall back to keyword extraction and templated replies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		cfg := appCfg.Cost
		if !cfg.Enabled {
			fmt.Fprintln(out, "Cost budgeting is disabled")
			fmt.Fprintln(out, "Set cost.enabled: true or RISKPILOT_COST_ENABLED=true to enable it")
			return nil
		}
		tracker, err := cost.NewTracker(&cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize cost tracker: %w", err)
		}
		printCost(out, &cfg, tracker.GetStats())
		return nil
	},
}

func printCost(w io.Writer, cfg *cost.Config, stats cost.BudgetStats) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	status := color.GreenString(stats.Status.String())
	switch stats.Status {
	case cost.BudgetWarning:
		status = color.YellowString(stats.Status.String())
	case cost.BudgetExceeded:
		status = color.New(color.FgRed, color.Bold).Sprint(stats.Status.String())
	}
	fmt.Fprintf(w, "\n%s  %s\n\n", cyan("Model Budget"), status)

	fmt.Fprintln(w, yellow("Current window:"))
	if cfg.MaxTokensPerHour > 0 {
		pct := float64(stats.HourlyTokensUsed) / float64(cfg.MaxTokensPerHour) * 100
		fmt.Fprintf(w, "  Tokens:  %s / %s (%.1f%%)\n", formatTokens(stats.HourlyTokensUsed), formatTokens(cfg.MaxTokensPerHour), pct)
		fmt.Fprintf(w, "           %s\n", progressBar(pct, 40))
	} else {
		fmt.Fprintf(w, "  Tokens:  %s (unlimited)\n", formatTokens(stats.HourlyTokensUsed))
	}
	if cfg.MaxCostPerHour > 0 {
		pct := stats.HourlyCostUsed / cfg.MaxCostPerHour * 100
		fmt.Fprintf(w, "  Cost:    $%.4f / $%.2f (%.1f%%)\n", stats.HourlyCostUsed, cfg.MaxCostPerHour, pct)
	} else {
		fmt.Fprintf(w, "  Cost:    $%.4f (unlimited)\n", stats.HourlyCostUsed)
	}
	for op, tokens := range stats.ByOperation {
		fmt.Fprintf(w, "  %-8s %s\n", op+":", formatTokens(tokens))
	}
	fmt.Fprintf(w, "  Resets:  %s\n\n", stats.WindowStartTime.Add(cfg.BudgetResetInterval).Local().Format("15:04:05"))

	fmt.Fprintln(w, yellow("All time:"))
	fmt.Fprintf(w, "  Tokens:  %s\n", formatTokens(stats.TotalTokensUsed))
	fmt.Fprintf(w, "  Cost:    $%.2f\n\n", stats.TotalCostUsed)
}

// formatTokens abbreviates a token count
func formatTokens(tokens int64) string {
	switch {
	case tokens < 1000:
		return fmt.Sprintf("%d", tokens)
	case tokens < 1_000_000:
		return fmt.Sprintf("%.1fK", float64(tokens)/1000)
	}
	return fmt.Sprintf("%.2fM", float64(tokens)/1_000_000)
}

// progressBar renders percent (clamped to 0-100) as a bar of width cells
func progressBar(percent float64, width int) string {
	percent = max(0, min(percent, 100))
	filled := int(percent / 100 * float64(width))

	fill := color.New(color.FgGreen)
	switch {
	case percent >= 100:
		fill = color.New(color.FgRed, color.Bold)
	case percent >= 80:
		fill = color.New(color.FgYellow)
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(fill.Sprint(strings.Repeat("█", filled)))
	b.WriteString(color.New(color.FgHiBlack).Sprint(strings.Repeat("░", width-filled)))
	b.WriteString("]")
	return b.String()
}

func init() {
	rootCmd.AddCommand(costCmd)
}
