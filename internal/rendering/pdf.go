package rendering

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/jonathan/guideline-extractor/internal/types"
)

// DefaultDPI is the extraction render resolution
const DefaultDPI = 200

const pointsPerInch = 72.0

// Renderer converts document bytes into 1-based contiguous page images
type Renderer interface {
	Render(ctx context.Context, doc []byte, dpi int) ([]types.PageImage, error)
}

// ScannedPDFRenderer renders scanned PDFs, where every page carries its scan as an
// embedded image. It does not rasterize vector content.
type ScannedPDFRenderer struct{}

// NewScannedPDFRenderer returns a renderer for scanned PDFs
func NewScannedPDFRenderer() *ScannedPDFRenderer {
	return &ScannedPDFRenderer{}
}

// Render takes the largest embedded image of every page, downscaled to fit the
// page at dpi
func (r *ScannedPDFRenderer) Render(ctx context.Context, doc []byte, dpi int) ([]types.PageImage, error) {
	pdfCtx, dims, err := open(doc)
	if err != nil {
		return nil, err
	}

	pages := make([]types.PageImage, 0, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := renderPage(pdfCtx, dims, pageNr, dpi)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// RenderPage renders a single 1-based page
func (r *ScannedPDFRenderer) RenderPage(ctx context.Context, doc []byte, pageNr, dpi int) (types.PageImage, error) {
	pdfCtx, dims, err := open(doc)
	if err != nil {
		return types.PageImage{}, err
	}
	if pageNr < 1 || pageNr > pdfCtx.PageCount {
		return types.PageImage{}, &RenderError{Page: pageNr, Message: fmt.Sprintf("out of range, document has %d pages", pdfCtx.PageCount)}
	}
	if err := ctx.Err(); err != nil {
		return types.PageImage{}, err
	}
	return renderPage(pdfCtx, dims, pageNr, dpi)
}

func open(doc []byte) (*model.Context, []pdftypes.Dim, error) {
	if len(doc) == 0 {
		return nil, nil, &RenderError{Message: "document is empty"}
	}

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(doc), model.NewDefaultConfiguration())
	if err != nil {
		return nil, nil, &RenderError{Message: "failed to parse PDF", Cause: err}
	}
	if pdfCtx.PageCount == 0 {
		return nil, nil, &RenderError{Message: "document has no pages"}
	}

	dims, err := pdfCtx.PageDims()
	if err != nil {
		return nil, nil, &RenderError{Message: "failed to read page sizes", Cause: err}
	}
	return pdfCtx, dims, nil
}

func renderPage(pdfCtx *model.Context, dims []pdftypes.Dim, pageNr, dpi int) (types.PageImage, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	images, err := pdfcpu.ExtractPageImages(pdfCtx, pageNr, false)
	if err != nil {
		return types.PageImage{}, &RenderError{Page: pageNr, Message: "failed to extract images", Cause: err}
	}
	largest, ok, err := largestImage(images)
	if err != nil {
		return types.PageImage{}, &RenderError{Page: pageNr, Message: "failed to read image", Cause: err}
	}
	if !ok {
		return types.PageImage{}, &RenderError{Page: pageNr, Message: "page has no embedded image"}
	}

	var maxW, maxH int
	if pageNr-1 < len(dims) {
		maxW = pixels(dims[pageNr-1].Width, dpi)
		maxH = pixels(dims[pageNr-1].Height, dpi)
	}
	return encodePage(pageNr, largest, maxW, maxH)
}

// embeddedImage is an extracted image with its decoded pixel size.
// pdfcpu does not fill model.Image.Width and Height on extraction.
type embeddedImage struct {
	objNr    int
	fileType string
	data     []byte
	width    int
	height   int
}

func (e embeddedImage) area() int { return e.width * e.height }

// largestImage picks the image with the most pixels, breaking ties on the lowest
// object number
func largestImage(images map[int]model.Image) (embeddedImage, bool, error) {
	var (
		best  embeddedImage
		found bool
	)
	for _, img := range images {
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img.Reader)
		if err != nil {
			return embeddedImage{}, false, fmt.Errorf("object %d: %w", img.ObjNr, err)
		}
		e := embeddedImage{objNr: img.ObjNr, fileType: img.FileType, data: data, width: img.Width, height: img.Height}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			e.width, e.height = cfg.Width, cfg.Height
		}
		if !found || e.area() > best.area() || (e.area() == best.area() && e.objNr < best.objNr) {
			best, found = e, true
		}
	}
	return best, found, nil
}

func pixels(points float64, dpi int) int {
	return int(math.Round(points / pointsPerInch * float64(dpi)))
}

// encodePage passes PNG and JPEG scans through untouched when they fit, and
// otherwise decodes, downscales and re-encodes them as PNG
func encodePage(pageNr int, img embeddedImage, maxW, maxH int) (types.PageImage, error) {
	mime, passthrough := mimeForFileType(img.fileType)
	if passthrough && img.area() > 0 && fits(img.width, img.height, maxW, maxH) {
		return types.PageImage{PageNumber: pageNr, Data: img.data, MimeType: mime}, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.data))
	if err != nil {
		return types.PageImage{}, &RenderError{Page: pageNr, Message: "unsupported image format " + img.fileType, Cause: err}
	}

	data, err := encodePNG(Downscale(decoded, maxW, maxH))
	if err != nil {
		return types.PageImage{}, &RenderError{Page: pageNr, Message: "failed to encode PNG", Cause: err}
	}
	return types.PageImage{PageNumber: pageNr, Data: data, MimeType: "image/png"}, nil
}

func mimeForFileType(fileType string) (string, bool) {
	switch fileType {
	case "png":
		return "image/png", true
	case "jpg", "jpeg":
		return "image/jpeg", true
	}
	return "", false
}

func fits(w, h, maxW, maxH int) bool {
	return maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH)
}

// Downscale shrinks img to fit within maxW x maxH, keeping the aspect ratio.
// Images that already fit, or a non-positive bound, return img unchanged.
func Downscale(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if fits(b.Dx(), b.Dy(), maxW, maxH) {
		return img
	}

	scale := math.Min(float64(maxW)/float64(b.Dx()), float64(maxH)/float64(b.Dy()))
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ Renderer = (*ScannedPDFRenderer)(nil)
