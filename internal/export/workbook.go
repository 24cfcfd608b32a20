// Package export builds reviewer-facing spreadsheets from assembled chunks.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jonathan/guideline-extractor/internal/artifacts"
	"github.com/jonathan/guideline-extractor/internal/logger"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// SheetName is the worksheet holding one row per chunk
const SheetName = "Chunks"

// Headers are the review sheet columns in order
var Headers = []string{"Chunk ID", "Page", "Content Type", "Topic", "Review Status"}

const maxTopicLen = 140

// contentHead is the part of a content body the sheet needs
type contentHead struct {
	ContentType string `json:"content_type"`
	Topic       string `json:"topic"`
}

// ReviewWorkbook returns an XLSX workbook with one row per flat chunk
func ReviewWorkbook(flat []types.FlatChunk) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for i, chunk := range flat {
		row := i + 2
		var head contentHead
		if err := json.Unmarshal(chunk.Content, &head); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk.ChunkID, err)
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, chunk.ChunkID)
		write(2, chunk.Page)
		write(3, head.ContentType)
		write(4, truncate(head.Topic, maxTopicLen))
		write(5, string(chunk.HumanAudit.Status))
	}

	_ = f.SetColWidth(SheetName, "A", "A", 24)
	_ = f.SetColWidth(SheetName, "B", "B", 8)
	_ = f.SetColWidth(SheetName, "C", "C", 22)
	_ = f.SetColWidth(SheetName, "D", "D", 60)
	_ = f.SetColWidth(SheetName, "E", "E", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveReviewWorkbook builds the workbook and stores it under artifacts.ReviewName
func SaveReviewWorkbook(ctx context.Context, store artifacts.BinaryStore, flat []types.FlatChunk, log *logger.Logger) error {
	start := time.Now()

	data, err := ReviewWorkbook(flat)
	if err != nil {
		return err
	}
	if err := store.SaveBytes(ctx, artifacts.ReviewName, data); err != nil {
		return fmt.Errorf("save review workbook: %w", err)
	}

	log.Info("export.xlsx.ok",
		"rows", len(flat),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
