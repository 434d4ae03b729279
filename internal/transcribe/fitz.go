package transcribe

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// Base rendering resolution; the pipeline scale factor multiplies this.
const baseDPI = 72

// FitzRasterizer renders document pages with MuPDF and post-processes the
// raster for OCR legibility.
type FitzRasterizer struct{}

// NewFitzRasterizer creates a rasterizer backed by go-fitz.
func NewFitzRasterizer() *FitzRasterizer {
	return &FitzRasterizer{}
}

// Render renders one page of the document at baseDPI multiplied by scale and
// enhances the result for recognition.
func (r *FitzRasterizer) Render(ctx context.Context, data []byte, pageIndex int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer doc.Close()

	if pageIndex < 0 || pageIndex >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", pageIndex, doc.NumPage())
	}

	img, err := doc.ImageDPI(pageIndex, baseDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("rendering page %d: %w", pageIndex, err)
	}

	return enhanceForOCR(img), nil
}

// enhanceForOCR applies a grayscale/contrast/sharpen chain that makes printed
// text easier for the recognizer to read.
func enhanceForOCR(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 25)
	img = imaging.Sharpen(img, 1.2)
	return img
}
