// Package artifacts persists per-page and run-level extraction outputs.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Run-level artifact names
const (
	FlatName     = "guideline_chunks_flat.json"
	NestedName   = "guideline_with_metadata.json"
	MetadataName = "guideline_metadata.json"
	ReviewName   = "guideline_review.xlsx"
)

// PageRawName is the raw model reply for a page
func PageRawName(page int) string {
	return fmt.Sprintf("page_%03d_raw.txt", page)
}

// PageJSONName is the accepted chunk list for a page
func PageJSONName(page int) string {
	return fmt.Sprintf("page_%03d.json", page)
}

// PageErrorsName is the error list for a rejected page
func PageErrorsName(page int) string {
	return fmt.Sprintf("page_%03d_errors.txt", page)
}

// Store writes named artifacts. Implementations must allow concurrent writes to distinct names.
type Store interface {
	SaveText(ctx context.Context, name, text string) error
	SaveJSON(ctx context.Context, name string, v any) error
}

// BinaryStore additionally accepts opaque bytes such as spreadsheets
type BinaryStore interface {
	Store
	SaveBytes(ctx context.Context, name string, data []byte) error
}

// MarshalJSON encodes v with two-space indentation and without HTML escaping
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FileStore writes artifacts as files in one directory
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the output directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path of a named artifact
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// SaveText writes text as UTF-8
func (s *FileStore) SaveText(ctx context.Context, name, text string) error {
	return s.SaveBytes(ctx, name, []byte(text))
}

// SaveJSON writes v as indented JSON
func (s *FileStore) SaveJSON(ctx context.Context, name string, v any) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return s.SaveBytes(ctx, name, data)
}

// SaveBytes writes data to the named file
func (s *FileStore) SaveBytes(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(s.Path(name), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Clean removes artifacts left by a previous run. Files that are not artifacts are kept.
func (s *FileStore) Clean() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isArtifactName(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

func isArtifactName(name string) bool {
	switch name {
	case FlatName, NestedName, MetadataName, ReviewName:
		return true
	}
	return strings.HasPrefix(name, "page_") && (strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".txt"))
}

// MultiStore fans every write out to all stores, collecting failures
type MultiStore []Store

// SaveText writes to every store
func (m MultiStore) SaveText(ctx context.Context, name, text string) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveText(ctx, name, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveJSON writes to every store
func (m MultiStore) SaveJSON(ctx context.Context, name string, v any) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveJSON(ctx, name, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveBytes writes to every store that accepts binary artifacts
func (m MultiStore) SaveBytes(ctx context.Context, name string, data []byte) error {
	var errs []error
	for _, s := range m {
		if bs, ok := s.(BinaryStore); ok {
			if err := bs.SaveBytes(ctx, name, data); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
