package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/guideline-extractor/internal/observability"
	"github.com/jonathan/guideline-extractor/internal/parsing"
	"github.com/jonathan/guideline-extractor/internal/schemas"
	"github.com/jonathan/guideline-extractor/internal/validation"
)

var (
	validateRawPath  string
	validateMetadata bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a saved model reply without calling the model",
	Long: `Normalize a saved reply (such as page_012_raw.txt) and validate it the way an extraction run would.

Use --metadata to check a cover-page reply against the metadata schema instead.`,
	Example: `  guideline_extractor validate --raw output/page_012_raw.txt
  guideline_extractor validate --raw cover.txt --metadata`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateRawPath, "raw", "r", "", "Path to a saved model reply")
	validateCmd.Flags().BoolVar(&validateMetadata, "metadata", false, "Validate against the cover-page metadata schema")

	_ = validateCmd.MarkFlagRequired("raw")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	raw, err := os.ReadFile(validateRawPath)
	if err != nil {
		return fmt.Errorf("failed to read reply: %w", err)
	}

	registry, err := schemas.DefaultRegistry()
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	normalized := parsing.Normalize(string(raw))

	if validateMetadata {
		if _, err := parsing.ParseJSONObject(normalized); err != nil {
			printer.PrintValidation(0, []string{fmt.Sprintf("Malformed response: %v", err)})
			return fmt.Errorf("reply rejected")
		}
		if err := registry.ValidateMetadata([]byte(normalized)); err != nil {
			printer.PrintValidation(0, []string{err.Error()})
			return fmt.Errorf("reply rejected")
		}
		printer.PrintValidation(1, nil)
		return nil
	}

	result := validation.New(registry).ValidateContent(normalized)
	printer.PrintValidation(len(result.Records), result.Errors)
	if !result.OK() {
		return fmt.Errorf("reply rejected with %d error(s)", len(result.Errors))
	}
	return nil
}
