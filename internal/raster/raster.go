// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package raster renders PDF pages to image files at a fixed DPI.
//
// Pages are rendered and written one at a time; only a single page buffer
// is alive at any moment.
package raster

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/office2img/internal/progress"
	"github.com/pdiddy/office2img/pkg/types"
)

// nativeDPI is the resolution of PDF user space (1 unit = 1/72 inch).
const nativeDPI = 72.0

// Document is an open PDF. *fitz.Document satisfies it.
type Document interface {
	// NumPage returns the number of pages.
	NumPage() int
	// ImageDPI renders the zero-based page at the given resolution.
	ImageDPI(page int, dpi float64) (*image.RGBA, error)
	// Close releases the document.
	Close() error
}

// Opener opens a PDF file for rendering.
type Opener func(path string) (Document, error)

// Rasterizer writes every page of a PDF to page_NNN.<format>.
type Rasterizer struct {
	open   Opener
	format types.ImageFormat
	log    *logrus.Logger
	w      io.Writer
}

// New returns a Rasterizer using open to read PDFs. Progress lines are
// written to w.
func New(open Opener, format types.ImageFormat, w io.Writer, log *logrus.Logger) *Rasterizer {
	if open == nil {
		open = OpenFitz
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	if w == nil {
		w = io.Discard
	}
	return &Rasterizer{open: open, format: format, log: log, w: w}
}

// Format returns the image format the rasterizer writes.
func (r *Rasterizer) Format() types.ImageFormat {
	return r.format
}

// Rasterize renders every page of pdfPath into outputDir at dpi and returns
// the number of pages written. outputDir is created if absent.
func (r *Rasterizer) Rasterize(pdfPath, outputDir string, dpi int) (pages int, err error) {
	if _, err := os.Stat(pdfPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", types.ErrSourceNotFound, pdfPath)
		}
		return 0, fmt.Errorf("checking %s: %w", pdfPath, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}

	doc, err := r.open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			r.log.WithError(cerr).WithField("pdf", pdfPath).Debug("closing PDF failed")
		}
	}()

	n := doc.NumPage()
	fmt.Fprintf(r.w, "  pages: %d\n", n)

	for i := 0; i < n; i++ {
		name, err := r.renderPage(doc, i, outputDir, float64(dpi))
		if err != nil {
			return i, err
		}
		fmt.Fprintf(r.w, "    %s %s\n", progress.OK(), name)
	}
	return n, nil
}

// renderPage renders the zero-based page idx and writes it to disk. The
// rendered buffer does not outlive this call.
func (r *Rasterizer) renderPage(doc Document, idx int, outputDir string, dpi float64) (string, error) {
	img, err := doc.ImageDPI(idx, dpi)
	if err != nil {
		return "", fmt.Errorf("rendering page %d: %w", idx+1, err)
	}
	name := ImageName("page", idx+1, r.format)
	if err := WriteFile(filepath.Join(outputDir, name), Flatten(img), r.format); err != nil {
		return "", fmt.Errorf("writing page %d: %w", idx+1, err)
	}
	return name, nil
}

// ImageName returns the file name for the 1-based index, e.g. page_007.png.
func ImageName(prefix string, index int, format types.ImageFormat) string {
	return fmt.Sprintf("%s_%03d.%s", prefix, index, format)
}

// ScaledSize converts a size in points to pixels at dpi, truncating.
func ScaledSize(widthPts, heightPts float64, dpi int) (width, height int) {
	return int(widthPts * float64(dpi) / nativeDPI), int(heightPts * float64(dpi) / nativeDPI)
}
