package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/guideline-extractor/internal/artifacts"
	"github.com/jonathan/guideline-extractor/internal/config"
	"github.com/jonathan/guideline-extractor/internal/llm"
	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/pipeline"
	"github.com/jonathan/guideline-extractor/internal/schemas"
)

var metadataFlags commonFlags

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Identify a guideline from its cover page",
	Long: `Send only the cover page to the vision model and print the guideline identity that an extraction run would use.

Identity flags such as --guideline-id and --country override the extracted values.`,
	Example: `  guideline_extractor metadata -i stg_2024.pdf
  guideline_extractor metadata -i ./scans --provider gemini`,
	RunE: runMetadata,
}

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataFlags.register(metadataCmd.Flags())
}

func runMetadata(cmd *cobra.Command, _ []string) error {
	cfg, err := metadataFlags.resolveConfig(cmd, nil)
	if err != nil {
		return err
	}

	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		return fmt.Errorf("API key is required (use --api-key or set %s / %s)", config.AnthropicAPIKeyEnv, config.GeminiAPIKeyEnv)
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cover, err := loadCover(ctx, cfg)
	if err != nil {
		return err
	}

	registry, err := schemas.DefaultRegistry()
	if err != nil {
		return err
	}

	client, err := llm.NewClient(ctx, cfg.MetadataLLMConfig(), apiKey, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	meta, usage, err := pipeline.BootstrapMetadata(ctx, client, registry, cover, log)
	if err != nil {
		return err
	}

	info, err := pipeline.ToGuidelineInfo(meta, overrides(cfg))
	if err != nil {
		return err
	}

	data, err := artifacts.MarshalJSON(info)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, string(data))

	if cfg.Verbose {
		printUsage(cmd, cfg.Model, usage.InputTokens, usage.OutputTokens)
	}
	return nil
}
