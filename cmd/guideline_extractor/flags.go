package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonathan/guideline-extractor/internal/config"
	"github.com/jonathan/guideline-extractor/internal/pipeline"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// commonFlags are shared by the commands that talk to the vision model
type commonFlags struct {
	configPath        string
	input             string
	provider          string
	model             string
	apiKey            string
	maxTokens         int
	requestsPerMinute int
	dpi               int
	metadataDPI       int
	guidelineID       string
	guidelineName     string
	guidelineVersion  string
	country           string
	jurisdiction      string
	organization      string
	regulatoryStatus  string
	createdBy         string
	logLevel          string
	verbose           bool
}

func (f *commonFlags) register(fs *pflag.FlagSet) {
	// Config file flag (processed first)
	fs.StringVar(&f.configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	fs.StringVarP(&f.input, "input", "i", "", "Scanned PDF or directory of page images")
	fs.StringVar(&f.provider, "provider", "", "Vision model provider: anthropic or gemini (default anthropic)")
	fs.StringVarP(&f.model, "model", "m", "", "Model identifier (default depends on provider)")
	// API key can be passed as a flag, or read from ANTHROPIC_API_KEY / GEMINI_API_KEY
	fs.StringVar(&f.apiKey, "api-key", "", "API key (optional, defaults to the provider's env var)")
	fs.IntVar(&f.maxTokens, "max-tokens", 0, "Output token cap per page (default 4000)")
	fs.IntVar(&f.requestsPerMinute, "rpm", 0, "Maximum model requests per minute (0 = unlimited)")
	fs.IntVar(&f.dpi, "dpi", 0, "Page render resolution (default 200)")
	fs.IntVar(&f.metadataDPI, "metadata-dpi", 0, "Cover page render resolution (default 150)")

	fs.StringVar(&f.guidelineID, "guideline-id", "", "Guideline identifier (derived from the name when empty)")
	fs.StringVar(&f.guidelineName, "guideline-name", "", "Guideline name; skips metadata extraction when set")
	fs.StringVar(&f.guidelineVersion, "guideline-version", "", "Guideline version")
	fs.StringVar(&f.country, "country", "", "Country the guideline applies to")
	fs.StringVar(&f.jurisdiction, "jurisdiction", "", "Jurisdiction the guideline applies to")
	fs.StringVar(&f.organization, "organization", "", "Publishing organization")
	fs.StringVar(&f.regulatoryStatus, "regulatory-status", "", "official, draft, guidance or archived (default draft)")
	fs.StringVar(&f.createdBy, "created-by", "", "Creator recorded in human_audit (default system)")

	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Print detailed debug information")
}

// resolveConfig loads the config file, applies explicitly set flags and fills defaults.
// extra applies command-specific flags before defaults are merged.
func (f *commonFlags) resolveConfig(cmd *cobra.Command, extra func(cfg *config.Config)) (config.Config, error) {
	// Step 1: Load config file if provided
	var cfg config.Config
	if f.configPath != "" {
		loadedCfg, err := config.LoadConfig(f.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loadedCfg
		if f.verbose {
			_, _ = fmt.Fprintf(os.Stderr, "Loaded config from: %s\n", f.configPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	flags := cmd.Flags()
	setString := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	setInt := func(name string, dst *int, v int) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	setString("input", &cfg.Input, f.input)
	setString("provider", &cfg.Provider, f.provider)
	setString("model", &cfg.Model, f.model)
	setString("api-key", &cfg.APIKey, f.apiKey)
	setInt("max-tokens", &cfg.MaxTokens, f.maxTokens)
	setInt("rpm", &cfg.RequestsPerMinute, f.requestsPerMinute)
	setInt("dpi", &cfg.DPI, f.dpi)
	setInt("metadata-dpi", &cfg.MetadataDPI, f.metadataDPI)
	setString("guideline-id", &cfg.GuidelineID, f.guidelineID)
	setString("guideline-name", &cfg.GuidelineName, f.guidelineName)
	setString("guideline-version", &cfg.GuidelineVersion, f.guidelineVersion)
	setString("country", &cfg.Country, f.country)
	setString("jurisdiction", &cfg.Jurisdiction, f.jurisdiction)
	setString("organization", &cfg.Organization, f.organization)
	setString("regulatory-status", &cfg.RegulatoryStatus, f.regulatoryStatus)
	setString("created-by", &cfg.CreatedBy, f.createdBy)
	setString("log-level", &cfg.LogLevel, f.logLevel)
	if flags.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if cfg.Verbose && cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if extra != nil {
		extra(&cfg)
	}

	// Step 3: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(config.Defaults())

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// overrides maps the configured identity fields to pipeline overrides
func overrides(cfg config.Config) pipeline.GuidelineOverrides {
	return pipeline.GuidelineOverrides{
		GuidelineID:      cfg.GuidelineID,
		GuidelineName:    cfg.GuidelineName,
		GuidelineVersion: cfg.GuidelineVersion,
		Country:          cfg.Country,
		Jurisdiction:     cfg.Jurisdiction,
		Organization:     cfg.Organization,
		RegulatoryStatus: types.RegulatoryStatus(cfg.RegulatoryStatus),
	}
}
