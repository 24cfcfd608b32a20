package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jonathan/guideline-extractor/internal/artifacts"
	"github.com/jonathan/guideline-extractor/internal/config"
	"github.com/jonathan/guideline-extractor/internal/db"
	"github.com/jonathan/guideline-extractor/internal/llm"
	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/observability"
	"github.com/jonathan/guideline-extractor/internal/pipeline"
	"github.com/jonathan/guideline-extractor/internal/rendering"
	"github.com/jonathan/guideline-extractor/internal/types"
)

var (
	extractFlags      commonFlags
	extractOutputDir  string
	extractPromptPath string
	extractBatchSize  int
	extractPages      string
	extractDBURL      string
	extractSQLitePath string
	extractReviewXLSX bool
	extractNoProgress bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured content from every page of a guideline",
	Long: `Render the input, identify the guideline from its cover page, extract every page in concurrent batches, and write the flat and nested outputs.

Per-page raw replies, accepted records and error lists are written next to the outputs so failed pages can be re-run with --pages.`,
	Example: `  guideline_extractor extract -i stg_2024.pdf -o ./output
  guideline_extractor extract -i ./scans --guideline-name "Standard Treatment Guidelines" --pages 12,40-42
  guideline_extractor extract --config config.json --review-xlsx --sqlite runs.db`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractFlags.register(extractCmd.Flags())
	extractCmd.Flags().StringVarP(&extractOutputDir, "output", "o", "", "Output directory (default ./output)")
	extractCmd.Flags().StringVar(&extractPromptPath, "prompt", "", "Base extraction prompt file (default embedded prompt)")
	extractCmd.Flags().IntVar(&extractBatchSize, "batch-size", 0, "Pages extracted concurrently per batch (default 5)")
	extractCmd.Flags().StringVar(&extractPages, "pages", "", "Only extract these pages, e.g. 1,3,5-7")
	// Database URL can be passed as a flag, or read from DATABASE_URL
	extractCmd.Flags().StringVar(&extractDBURL, "db-url", "", "PostgreSQL URL for the run archive (optional, defaults to DATABASE_URL)")
	extractCmd.Flags().StringVar(&extractSQLitePath, "sqlite", "", "SQLite file for a local run archive")
	extractCmd.Flags().BoolVar(&extractReviewXLSX, "review-xlsx", false, "Also write a review workbook of accepted chunks")
	extractCmd.Flags().BoolVar(&extractNoProgress, "no-progress", false, "Disable the progress bar")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	cfg, err := extractFlags.resolveConfig(cmd, func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("output") {
			cfg.OutputDir = extractOutputDir
		}
		if flags.Changed("prompt") {
			cfg.PromptPath = extractPromptPath
		}
		if flags.Changed("batch-size") {
			cfg.BatchSize = extractBatchSize
		}
		if flags.Changed("db-url") {
			cfg.DatabaseURL = extractDBURL
		}
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		}
		if flags.Changed("sqlite") {
			cfg.SQLitePath = extractSQLitePath
		}
		if flags.Changed("review-xlsx") {
			cfg.ReviewWorkbook = extractReviewXLSX
		}
	})
	if err != nil {
		return err
	}

	selection, err := rendering.ParsePageList(extractPages)
	if err != nil {
		return fmt.Errorf("invalid --pages: %w", err)
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

	input, err := loadInput(ctx, cfg, selection)
	if err != nil {
		return err
	}
	log.Info("extract.input.loaded", "input", cfg.Input, "pages", len(input.Pages), "document_pages", input.TotalPages)

	fileStore, err := artifacts.NewFileStore(cfg.OutputDir)
	if err != nil {
		return err
	}
	// A partial re-run keeps the artifacts of pages it does not touch and assembles them
	// into the run-level outputs
	var prior []types.PageOutput
	if len(selection) == 0 {
		if err := fileStore.Clean(); err != nil {
			return err
		}
	} else {
		prior, err = keepOtherPages(ctx, fileStore, input.Pages)
		if err != nil {
			return err
		}
		log.Info("extract.partial", "pages", len(input.Pages), "kept", len(prior))
	}

	arch, err := openArchives(ctx, cfg.DatabaseURL, cfg.SQLitePath, db.NewRun{
		GuidelineID:   cfg.GuidelineID,
		GuidelineName: cfg.GuidelineName,
		Model:         cfg.Model,
	}, log)
	if err != nil {
		return err
	}
	defer arch.Close()

	store := artifacts.MultiStore(append([]artifacts.Store{fileStore}, arch.Stores()...))

	client, err := llm.NewClient(ctx, cfg.LLMConfig(), apiKey, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	metadataClient, err := llm.NewClient(ctx, cfg.MetadataLLMConfig(), apiKey, log)
	if err != nil {
		return err
	}
	defer func() { _ = metadataClient.Close() }()

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)

	var bar *progressbar.ProgressBar
	onPage := func(completed, total int) {}
	if !extractNoProgress {
		bar = getProgressBar(len(input.Pages), "Extracting pages")
		onPage = func(completed, total int) {
			_ = bar.Set(completed)
		}
	}

	start := time.Now()
	result, err := pipeline.Run(ctx, pipeline.RunOptions{
		Pages:          input.Pages,
		MetadataPage:   input.Cover,
		PriorOutputs:   prior,
		Client:         client,
		MetadataClient: metadataClient,
		Store:          store,
		PromptPath:     cfg.PromptPath,
		BatchSize:      cfg.BatchSize,
		Overrides:      overrides(cfg),
		CreatedBy:      cfg.CreatedBy,
		ReviewWorkbook: cfg.ReviewWorkbook,
		Logger:         log,
		OnPage:         onPage,
		OnProgress: func(event pipeline.ProgressEvent) {
			log.Debug("extract.progress", "stage", event.Stage, "message", event.Message)
		},
	})
	if bar != nil {
		_ = bar.Finish()
		_, _ = fmt.Fprintln(os.Stderr)
	}
	arch.Complete(ctx, result)
	if err != nil {
		return err
	}

	cost, costKnown := llm.DefaultPricing().Cost(cfg.Model, result.Usage.InputTokens, result.Usage.OutputTokens)

	printer.PrintGuidelineInfo(result.Guideline)
	printer.PrintRunSummary(result.Summary, cfg.Model, cost, costKnown)
	printer.PrintFailures(result.Summary)

	_, _ = fmt.Fprintf(out, "%s %d chunks from %d pages in %s\n",
		color.GreenString("✓"),
		result.Summary.TotalChunks,
		result.Summary.TotalPages,
		time.Since(start).Round(time.Second),
	)
	_, _ = fmt.Fprintf(out, "  %s\n", fileStore.Path(artifacts.FlatName))
	_, _ = fmt.Fprintf(out, "  %s\n", fileStore.Path(artifacts.NestedName))
	if cfg.ReviewWorkbook {
		_, _ = fmt.Fprintf(out, "  %s\n", fileStore.Path(artifacts.ReviewName))
	}
	if n := len(result.Summary.PagesNeedingRetry); n > 0 {
		_, _ = fmt.Fprintf(out, "%s %d pages need a retry\n", color.YellowString("!"), n)
	}

	return nil
}

// keepOtherPages clears the artifacts of the pages about to be re-run and loads the
// saved outputs of every other page
func keepOtherPages(ctx context.Context, store *artifacts.FileStore, pages []types.PageImage) ([]types.PageOutput, error) {
	numbers := make([]int, len(pages))
	for i, p := range pages {
		numbers[i] = p.PageNumber
	}
	if err := store.CleanPages(numbers); err != nil {
		return nil, err
	}
	prior, err := store.LoadPageOutputs(ctx, numbers)
	if err != nil {
		return nil, fmt.Errorf("failed to load earlier page outputs: %w", err)
	}
	return prior, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
