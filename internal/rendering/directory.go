package rendering

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/guideline-extractor/internal/types"
)

var imageMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// LoadImageDir reads pre-rendered page images from dir in lexical file order
// as pages 1..N. Other files are ignored.
func LoadImageDir(ctx context.Context, dir string) ([]types.PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &RenderError{Message: "failed to read image directory", Cause: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageMimeTypes[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, &RenderError{Message: "no page images in " + dir}
	}
	sort.Strings(names)

	pages := make([]types.PageImage, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, &RenderError{Page: i + 1, Message: "failed to read " + name, Cause: err}
		}
		if len(data) == 0 {
			return nil, &RenderError{Page: i + 1, Message: name + " is empty"}
		}
		pages = append(pages, types.PageImage{
			PageNumber: i + 1,
			Data:       data,
			MimeType:   imageMimeTypes[strings.ToLower(filepath.Ext(name))],
		})
	}
	return pages, nil
}

// SelectPages keeps only the listed page numbers, preserving order. An empty list keeps all.
func SelectPages(pages []types.PageImage, want []int) []types.PageImage {
	if len(want) == 0 {
		return pages
	}
	keep := make(map[int]bool, len(want))
	for _, n := range want {
		keep[n] = true
	}
	out := make([]types.PageImage, 0, len(want))
	for _, p := range pages {
		if keep[p.PageNumber] {
			out = append(out, p)
		}
	}
	return out
}

// ParsePageList parses a page list such as "1,3,5-7" into sorted unique page numbers.
// An empty list selects every page and returns nil.
func ParsePageList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	seen := map[int]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			hi = lo
		}
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		if start < 1 || end < start {
			return nil, fmt.Errorf("invalid page range %q", part)
		}
		for n := start; n <= end; n++ {
			seen[n] = true
		}
	}

	pages := make([]int, 0, len(seen))
	for n := range seen {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages, nil
}
