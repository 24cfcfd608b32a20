package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/guideline-extractor/internal/types"
)

var pageArtifactPattern = regexp.MustCompile(`^page_(\d+)(\.json|_raw\.txt|_errors\.txt)$`)

type pageFiles struct {
	json, raw, errors bool
}

// scanPages indexes the per-page artifacts in the output directory by page number
func (s *FileStore) scanPages() (map[int]*pageFiles, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	pages := make(map[int]*pageFiles)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pageArtifactPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		f, ok := pages[n]
		if !ok {
			f = &pageFiles{}
			pages[n] = f
		}
		switch m[2] {
		case ".json":
			f.json = true
		case "_raw.txt":
			f.raw = true
		case "_errors.txt":
			f.errors = true
		}
	}
	return pages, nil
}

// CleanPages removes the artifacts of the given pages only
func (s *FileStore) CleanPages(pages []int) error {
	for _, n := range pages {
		for _, name := range []string{PageJSONName(n), PageRawName(n), PageErrorsName(n)} {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove %s: %w", name, err)
			}
		}
	}
	return nil
}

// LoadPageOutputs rebuilds page outputs from the artifacts of an earlier run, skipping
// the pages in exclude. A page with saved chunks is a success. A page with only an
// errors file is validation_failed when its raw reply was kept, and error otherwise.
func (s *FileStore) LoadPageOutputs(ctx context.Context, exclude []int) ([]types.PageOutput, error) {
	pages, err := s.scanPages()
	if err != nil {
		return nil, err
	}
	skip := make(map[int]bool, len(exclude))
	for _, n := range exclude {
		skip[n] = true
	}

	var outputs []types.PageOutput
	for n, f := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if skip[n] {
			continue
		}

		out := types.PageOutput{PageNumber: n}
		switch {
		case f.json:
			data, err := os.ReadFile(s.Path(PageJSONName(n)))
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", PageJSONName(n), err)
			}
			if err := json.Unmarshal(data, &out.Chunks); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", PageJSONName(n), err)
			}
			out.Status = types.StatusSuccess
		case f.errors:
			data, err := os.ReadFile(s.Path(PageErrorsName(n)))
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", PageErrorsName(n), err)
			}
			for _, line := range strings.Split(string(data), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					out.Errors = append(out.Errors, line)
				}
			}
			out.Status = types.StatusError
			if f.raw {
				out.Status = types.StatusValidationFailed
			}
		default:
			continue
		}
		outputs = append(outputs, out)
	}

	sort.Slice(outputs, func(i, j int) bool { return outputs[i].PageNumber < outputs[j].PageNumber })
	return outputs, nil
}
