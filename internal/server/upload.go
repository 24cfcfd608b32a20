package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonathan/guideline-extractor/internal/pipeline"
	"github.com/jonathan/guideline-extractor/internal/rendering"
	"github.com/jonathan/guideline-extractor/internal/types"
)

// multipartMemory is how much of an upload is held in memory before spilling to disk
const multipartMemory = 32 << 20

// upload is a parsed extraction request
type upload struct {
	Pages     []types.PageImage
	Cover     *types.PageImage
	Overrides pipeline.GuidelineOverrides
	BatchSize int
}

// parseUpload reads a multipart extraction request. A "file" part holds a scanned PDF;
// otherwise one or more "page" parts hold page images in page order.
func (s *Server) parseUpload(ctx context.Context, w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, classifyBodyError(err)
	}

	up := &upload{
		BatchSize: s.cfg.BatchSize,
		Overrides: pipeline.GuidelineOverrides{
			GuidelineID:      r.FormValue("guideline_id"),
			GuidelineName:    r.FormValue("guideline_name"),
			GuidelineVersion: r.FormValue("guideline_version"),
			Country:          r.FormValue("country"),
			Jurisdiction:     r.FormValue("jurisdiction"),
			Organization:     r.FormValue("organization"),
			RegulatoryStatus: types.RegulatoryStatus(r.FormValue("regulatory_status")),
		},
	}
	if v := r.FormValue("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, &ErrValidation{Field: "batch_size", Message: "must be a positive integer"}
		}
		up.BatchSize = n
	}

	var err error
	if files := r.MultipartForm.File["file"]; len(files) > 0 {
		err = s.loadPDF(ctx, files[0], up)
	} else if pages := r.MultipartForm.File["page"]; len(pages) > 0 {
		err = loadPageImages(pages, up)
	} else {
		return nil, &ErrValidation{Field: "file", Message: "upload a PDF as 'file' or page images as 'page'"}
	}
	if err != nil {
		return nil, err
	}

	if v := r.FormValue("pages"); v != "" {
		want, err := rendering.ParsePageList(v)
		if err != nil {
			return nil, &ErrValidation{Field: "pages", Message: err.Error()}
		}
		up.Pages = rendering.SelectPages(up.Pages, want)
		if len(up.Pages) == 0 {
			return nil, &ErrValidation{Field: "pages", Message: "no listed page is in the document"}
		}
	}
	return up, nil
}

func (s *Server) loadPDF(ctx context.Context, fh *multipart.FileHeader, up *upload) error {
	doc, err := readPart(fh)
	if err != nil {
		return err
	}
	pages, err := s.renderer.Render(ctx, doc, s.cfg.DPI)
	if err != nil {
		return err
	}
	cover, err := s.renderer.RenderPage(ctx, doc, 1, s.cfg.MetadataDPI)
	if err != nil {
		return err
	}
	up.Pages = pages
	up.Cover = &cover
	return nil
}

func loadPageImages(files []*multipart.FileHeader, up *upload) error {
	for i, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return &ErrValidation{Field: "page", Message: fmt.Sprintf("%s is empty", fh.Filename)}
		}
		up.Pages = append(up.Pages, types.PageImage{
			PageNumber: i + 1,
			Data:       data,
			MimeType:   pageMimeType(fh.Filename, data),
		})
	}
	first := up.Pages[0]
	up.Cover = &first
	return nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// pageMimeType prefers the file extension and falls back to content sniffing
func pageMimeType(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return http.DetectContentType(data)
}

func classifyBodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}
