package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/guideline-extractor/internal/llm"
)

var (
	costModel        string
	costInputTokens  int
	costOutputTokens int
	costList         bool
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate the USD cost of a token count",
	Example: `  guideline_extractor cost --model claude-sonnet-4-20250514 --input-tokens 1200000 --output-tokens 300000
  guideline_extractor cost --list`,
	RunE: runCost,
}

func init() {
	rootCmd.AddCommand(costCmd)

	costCmd.Flags().StringVarP(&costModel, "model", "m", llm.DefaultAnthropicModel, "Model identifier")
	costCmd.Flags().IntVar(&costInputTokens, "input-tokens", 0, "Input token count")
	costCmd.Flags().IntVar(&costOutputTokens, "output-tokens", 0, "Output token count")
	costCmd.Flags().BoolVar(&costList, "list", false, "List priced models and their rates")
}

func runCost(cmd *cobra.Command, _ []string) error {
	pricing := llm.DefaultPricing()
	out := cmd.OutOrStdout()

	if costList {
		for _, m := range pricing.Models() {
			rate := pricing[m]
			_, _ = fmt.Fprintf(out, "%-28s $%6.2f in  $%6.2f out  (per million tokens)\n", m, rate.Input, rate.Output)
		}
		return nil
	}

	if costInputTokens < 0 || costOutputTokens < 0 {
		return fmt.Errorf("token counts must not be negative")
	}

	cost, ok := pricing.Cost(costModel, costInputTokens, costOutputTokens)
	if !ok {
		return fmt.Errorf("no rate for model %s (known: %s)", costModel, strings.Join(pricing.Models(), ", "))
	}

	_, _ = fmt.Fprintf(out, "%s: %d input + %d output tokens = $%.4f\n", costModel, costInputTokens, costOutputTokens, cost)
	return nil
}

// printUsage prints token usage and cost for a single call
func printUsage(cmd *cobra.Command, model string, inputTokens, outputTokens int) {
	out := cmd.ErrOrStderr()
	cost, ok := llm.DefaultPricing().Cost(model, inputTokens, outputTokens)
	if !ok {
		_, _ = fmt.Fprintf(out, "Tokens: %d input, %d output\n", inputTokens, outputTokens)
		return
	}
	_, _ = fmt.Fprintf(out, "Tokens: %d input, %d output ($%.4f)\n", inputTokens, outputTokens, cost)
}
