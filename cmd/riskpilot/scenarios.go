package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/riskpilot/riskpilot/internal/calc"
	"github.com/riskpilot/riskpilot/internal/repl"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios [name...]",
	Short: "Run preset or custom stress scenarios",
	Long: `Stress the current risk context under preset scenarios.

With no arguments every preset runs. Name presets to run only those, or pass
shock flags to run one custom scenario. Custom shocks outside the supported
bounds (±500bp, ±50% equity, ±10% inflation) are rejected.

Examples:
  riskpilot scenarios
  riskpilot scenarios rate_up_100 crisis_2008
  riskpilot scenarios --rate-bp 150 --equity -0.25
  riskpilot scenarios --list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, _ := cmd.Flags().GetBool("list")
		asJSON, _ := cmd.Flags().GetBool("json")
		out := cmd.OutOrStdout()

		if list {
			if asJSON {
				return writeJSON(out, calc.Presets())
			}
			printPresets(out, calc.Presets())
			return nil
		}

		scenarios, err := selectScenarios(cmd, args)
		if err != nil {
			return err
		}

		provider, _, err := newContextProvider(appCfg, nil, logger)
		if err != nil {
			return err
		}
		results, err := calc.RunScenarios(cmd.Context(), provider.Current(), scenarios)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, results)
		}
		printScenarioResults(out, results)
		return nil
	},
}

// selectScenarios builds a custom scenario from flags, or looks up presets
func selectScenarios(cmd *cobra.Command, names []string) ([]calc.Scenario, error) {
	flags := cmd.Flags()
	if flags.Changed("rate-bp") || flags.Changed("equity") || flags.Changed("inflation") {
		if len(names) > 0 {
			return nil, fmt.Errorf("name presets or pass shock flags, not both")
		}
		var s calc.Shocks
		s.RateShockBP, _ = flags.GetFloat64("rate-bp")
		s.EquityShock, _ = flags.GetFloat64("equity")
		s.InflationShock, _ = flags.GetFloat64("inflation")
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return []calc.Scenario{{Name: "custom", Description: "Custom shocks", Shocks: s}}, nil
	}

	if len(names) == 0 {
		return calc.Presets(), nil
	}
	out := make([]calc.Scenario, 0, len(names))
	for _, name := range names {
		s, ok := calc.Preset(name)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (see riskpilot scenarios --list)", name)
		}
		out = append(out, s)
	}
	return out, nil
}

func printPresets(w io.Writer, presets []calc.Scenario) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(w, "\n%s\n", cyan("Preset Scenarios"))
	for _, s := range presets {
		fmt.Fprintf(w, "  %-16s %s (rates %+.0fbp, equity %+.0f%%, inflation %+.1f%%)\n",
			s.Name, s.Description, s.Shocks.RateShockBP, s.Shocks.EquityShock*100, s.Shocks.InflationShock*100)
	}
	fmt.Fprintln(w)
}

func printScenarioResults(w io.Writer, results []calc.ScenarioResult) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(w, "\n%s\n", cyan("Stress Scenarios"))
	for _, r := range results {
		repl.PrintStress(w, r.Scenario.Name, r.Result)
	}
	fmt.Fprintln(w)
}

func init() {
	scenariosCmd.Flags().Bool("list", false, "List presets without running them")
	scenariosCmd.Flags().Float64("rate-bp", 0, "Custom parallel rate shock in basis points")
	scenariosCmd.Flags().Float64("equity", 0, "Custom equity shock as a fraction (e.g. -0.2)")
	scenariosCmd.Flags().Float64("inflation", 0, "Custom inflation shock as a fraction (e.g. 0.03)")
	scenariosCmd.Flags().Bool("json", false, "Print results as JSON")
	rootCmd.AddCommand(scenariosCmd)
}
