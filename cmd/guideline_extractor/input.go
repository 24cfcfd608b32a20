package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/guideline-extractor/internal/config"
	"github.com/jonathan/guideline-extractor/internal/rendering"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// loadedInput holds the pages to extract and the cover page used for metadata
type loadedInput struct {
	Pages []types.PageImage
	Cover *types.PageImage
	// TotalPages counts every page in the source, before --pages selection
	TotalPages int
}

// loadInput renders a scanned PDF or reads a directory of page images.
// The cover page is always page 1 of the source, independent of selection.
func loadInput(ctx context.Context, cfg config.Config, selection []int) (*loadedInput, error) {
	if cfg.Input == "" {
		return nil, fmt.Errorf("input is required (use --input or set input in config file)")
	}

	stat, err := os.Stat(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var (
		pages []types.PageImage
		cover *types.PageImage
	)
	if stat.IsDir() {
		pages, err = rendering.LoadImageDir(ctx, cfg.Input)
		if err != nil {
			return nil, err
		}
		first := pages[0]
		cover = &first
	} else {
		doc, err := os.ReadFile(cfg.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		renderer := rendering.NewScannedPDFRenderer()
		pages, err = renderer.Render(ctx, doc, cfg.DPI)
		if err != nil {
			return nil, err
		}
		first, err := renderer.RenderPage(ctx, doc, 1, cfg.MetadataDPI)
		if err != nil {
			return nil, err
		}
		cover = &first
	}

	total := len(pages)
	pages = rendering.SelectPages(pages, selection)
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages selected (document has %d pages)", total)
	}

	return &loadedInput{Pages: pages, Cover: cover, TotalPages: total}, nil
}

// loadCover returns only the cover page, rendered at the metadata resolution
func loadCover(ctx context.Context, cfg config.Config) (types.PageImage, error) {
	if cfg.Input == "" {
		return types.PageImage{}, fmt.Errorf("input is required (use --input or set input in config file)")
	}

	stat, err := os.Stat(cfg.Input)
	if err != nil {
		return types.PageImage{}, fmt.Errorf("failed to read input: %w", err)
	}
	if stat.IsDir() {
		pages, err := rendering.LoadImageDir(ctx, cfg.Input)
		if err != nil {
			return types.PageImage{}, err
		}
		return pages[0], nil
	}

	doc, err := os.ReadFile(cfg.Input)
	if err != nil {
		return types.PageImage{}, fmt.Errorf("failed to read input: %w", err)
	}
	return rendering.NewScannedPDFRenderer().RenderPage(ctx, doc, 1, cfg.MetadataDPI)
}
