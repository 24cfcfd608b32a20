package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/guideline-extractor/internal/config"
	"github.com/jonathan/guideline-extractor/internal/db"
	"github.com/jonathan/guideline-extractor/internal/llm"
	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/server"
)

var (
	serveFlags      commonFlags
	servePort       int
	serveDBURL      string
	serveSQLitePath string
	servePromptPath string
	serveBatchSize  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for uploading guidelines and browsing runs",
	Long: `Start an HTTP server that accepts guideline uploads, streams extraction progress as server-sent events, and serves archived runs and their artifacts.

A run archive is required: pass --sqlite for a local file or --db-url (or DATABASE_URL) for PostgreSQL.`,
	Example: `  guideline_extractor serve --sqlite runs.db --port 8080
  curl -N -F file=@stg_2024.pdf http://localhost:8080/runs/stream`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags.register(serveCmd.Flags())
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	// Database URL can be passed as a flag, or read from DATABASE_URL
	serveCmd.Flags().StringVar(&serveDBURL, "db-url", "", "PostgreSQL URL for the run archive (optional, defaults to DATABASE_URL)")
	serveCmd.Flags().StringVar(&serveSQLitePath, "sqlite", "", "SQLite file for the run archive")
	serveCmd.Flags().StringVar(&servePromptPath, "prompt", "", "Base extraction prompt file (default embedded prompt)")
	serveCmd.Flags().IntVar(&serveBatchSize, "batch-size", 0, "Default pages extracted concurrently per batch (default 5)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := serveFlags.resolveConfig(cmd, func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("db-url") {
			cfg.DatabaseURL = serveDBURL
		}
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		}
		if flags.Changed("sqlite") {
			cfg.SQLitePath = serveSQLitePath
		}
		if flags.Changed("prompt") {
			cfg.PromptPath = servePromptPath
		}
		if flags.Changed("batch-size") {
			cfg.BatchSize = serveBatchSize
		}
	})
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	clients := func(ctx context.Context) (llm.VisionClient, llm.VisionClient, error) {
		page, err := llm.NewClient(ctx, cfg.LLMConfig(), apiKey, log)
		if err != nil {
			return nil, nil, err
		}
		metadata, err := llm.NewClient(ctx, cfg.MetadataLLMConfig(), apiKey, log)
		if err != nil {
			_ = page.Close()
			return nil, nil, err
		}
		return page, metadata, nil
	}

	srv, err := server.New(server.Config{
		Port:        servePort,
		DPI:         cfg.DPI,
		MetadataDPI: cfg.MetadataDPI,
		BatchSize:   cfg.BatchSize,
		Model:       cfg.Model,
		PromptPath:  cfg.PromptPath,
		CreatedBy:   cfg.CreatedBy,
	}, backend, clients, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}

// openBackend opens the SQLite archive when configured, otherwise PostgreSQL
func openBackend(ctx context.Context, cfg config.Config) (db.Backend, func(), error) {
	switch {
	case cfg.SQLitePath != "":
		lite, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return lite, func() { _ = lite.Close() }, nil
	case cfg.DatabaseURL != "":
		pg, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("a run archive is required (use --sqlite, --db-url or set DATABASE_URL)")
	}
}
