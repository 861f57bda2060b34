package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/allenjsomb/changer/pkg/processor"
	"github.com/allenjsomb/changer/pkg/rule"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	rulesPath    string
	outputFormat string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect pull rules",
	Long:  "Commands for listing and validating the rules that drive dispatch and extraction.",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the pull rules in a rules file",
	RunE:  runRulesList,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a rules file without starting the broker",
	RunE:  runRulesValidate,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)

	rulesListCmd.Flags().StringVar(&rulesPath, "rules", "./rules.yml", "Path to the rules file")
	rulesListCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")

	rulesValidateCmd.Flags().StringVar(&rulesPath, "rules", "./rules.yml", "Path to the rules file")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	loader := rule.NewLoader()
	cfg, err := loader.Load(rulesPath)
	if err != nil {
		return fmt.Errorf("loading rules from %s: %w", rulesPath, err)
	}

	switch outputFormat {
	case "json":
		return outputRulesJSON(cmd, cfg.PullRules)
	case "table":
		return outputRulesTable(cmd, cfg.PullRules)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	loader := rule.NewLoader()
	cfg, err := loader.Load(rulesPath)
	if err != nil {
		return fmt.Errorf("loading rules from %s: %w", rulesPath, err)
	}

	out := cmd.OutOrStdout()
	invalid := 0
	for _, pr := range cfg.PullRules {
		if pr.Src == "" {
			invalid++
			fmt.Fprintf(out, "%s rule with empty src\n", color.RedString("INVALID"))
			continue
		}
		if pr.Regex == "" {
			fmt.Fprintf(out, "%s %s (no regex, pass-through)\n", color.GreenString("OK"), pr.Src)
			continue
		}
		p := processor.New()
		if !p.SetRegex(pr.Regex) {
			invalid++
			fmt.Fprintf(out, "%s %s: regex does not compile or has no named group\n", color.RedString("INVALID"), pr.Src)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", color.GreenString("OK"), pr.Src)
	}

	if invalid > 0 {
		return fmt.Errorf("%d invalid rule(s)", invalid)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func outputRulesJSON(cmd *cobra.Command, rules []rule.PullRule) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(rules)
}

func outputRulesTable(cmd *cobra.Command, rules []rule.PullRule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "SRC\tREGEX\tDST\n")
	fmt.Fprintf(w, "---\t-----\t---\n")

	for _, r := range rules {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Src, r.Regex, r.Dst)
	}

	return nil
}
