// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns one source document into page or slide images.
// PDFs are rasterized directly; DOCX files are exported to a temporary PDF
// by the document application first; PPTX slides are exported one by one
// by the presentation application.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/office2img/internal/backend"
	"github.com/pdiddy/office2img/internal/progress"
	"github.com/pdiddy/office2img/internal/raster"
	"github.com/pdiddy/office2img/pkg/types"
)

// tempPDFName is the intermediate export of a DOCX, written into the job's
// output directory and removed before the conversion returns.
const tempPDFName = "temp_export.pdf"

// Sessions hands out the backend sessions of the current batch.
// *backend.Manager satisfies it.
type Sessions interface {
	Documents(ctx context.Context) (backend.Documents, error)
	Presentations(ctx context.Context) (backend.Presentations, error)
}

// Converter converts documents to images in one format and resolution.
type Converter struct {
	sessions Sessions
	raster   *raster.Rasterizer
	dpi      int
	w        io.Writer
	log      *logrus.Logger
}

// New returns a Converter. Progress lines are written to w.
func New(sessions Sessions, r *raster.Rasterizer, dpi int, w io.Writer, log *logrus.Logger) *Converter {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	if w == nil {
		w = io.Discard
	}
	return &Converter{sessions: sessions, raster: r, dpi: dpi, w: w, log: log}
}

// Convert dispatches job by format and reports the outcome. The error is
// non-nil whenever the status is not ConversionDone; callers classify it
// with errors.Is.
func (c *Converter) Convert(ctx context.Context, job types.ConversionJob) (types.FileResult, error) {
	res := types.FileResult{Name: job.Document.Name, Format: job.Document.Format}

	var err error
	switch job.Document.Format {
	case types.FormatPDF:
		res.Pages, err = c.ConvertPDF(job)
	case types.FormatDOCX:
		res.Pages, err = c.ConvertDOCX(ctx, job)
	case types.FormatPPTX:
		res.Pages, res.FailedPages, err = c.ConvertPPTX(ctx, job)
	default:
		err = fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, job.Document.Name)
	}

	switch {
	case err == nil:
		res.Status = types.ConversionDone
	case errors.Is(err, types.ErrSourceNotFound), errors.Is(err, types.ErrUnsupportedFormat):
		res.Status = types.ConversionSkipped
	case errors.Is(err, types.ErrPageExport) && res.Pages > 0:
		res.Status = types.ConversionPartial
	default:
		res.Status = types.ConversionFailed
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res, err
}

// ConvertPDF rasterizes a PDF into the job's output directory.
func (c *Converter) ConvertPDF(job types.ConversionJob) (int, error) {
	n, err := c.raster.Rasterize(job.Document.Path, job.OutputDir, c.dpi)
	if err != nil && !errors.Is(err, types.ErrSourceNotFound) {
		return n, fmt.Errorf("%w: %s: %w", types.ErrConversion, job.Document.Name, err)
	}
	return n, err
}

// ConvertDOCX exports a word-processing document to a temporary PDF and
// rasterizes it. The temporary PDF is removed on every path.
func (c *Converter) ConvertDOCX(ctx context.Context, job types.ConversionJob) (int, error) {
	if err := checkSource(job.Document.Path); err != nil {
		return 0, err
	}
	docs, err := c.sessions.Documents(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return 0, fmt.Errorf("%w: creating output directory %s: %w", types.ErrConversion, job.OutputDir, err)
	}

	tmp := filepath.Join(job.OutputDir, tempPDFName)
	defer c.removeTemp(tmp)

	doc, err := docs.Open(ctx, job.Document.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: opening %s: %w", types.ErrConversion, job.Document.Name, err)
	}
	defer c.closeBackend(ctx, job.Document.Name, doc.Close)

	reported, err := doc.PageCount(ctx)
	if err != nil {
		c.log.WithError(err).WithField("file", job.Document.Name).Debug("page count statistic unavailable")
		reported = -1
	} else {
		fmt.Fprintf(c.w, "  document pages: %d\n", reported)
	}

	if err := doc.ExportPDF(ctx, tmp); err != nil {
		return 0, fmt.Errorf("%w: exporting %s to PDF: %w", types.ErrConversion, job.Document.Name, err)
	}
	n, err := c.raster.Rasterize(tmp, job.OutputDir, c.dpi)
	if err != nil {
		return n, fmt.Errorf("%w: rasterizing %s: %w", types.ErrConversion, job.Document.Name, err)
	}
	if reported >= 0 && reported != n {
		fmt.Fprintf(c.w, "  %s %s: application reported %d pages, exported PDF has %d\n",
			progress.Warning(), job.Document.Name, reported, n)
	}
	return n, nil
}

// ConvertPPTX exports every slide of a presentation. A failing slide is
// reported and skipped; it returns the number of slides written and the
// 1-based indexes of the ones that failed.
func (c *Converter) ConvertPPTX(ctx context.Context, job types.ConversionJob) (int, []int, error) {
	if err := checkSource(job.Document.Path); err != nil {
		return 0, nil, err
	}
	pres, err := c.sessions.Presentations(ctx)
	if err != nil {
		return 0, nil, err
	}
	outDir, err := filepath.Abs(job.OutputDir)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: resolving %s: %w", types.ErrConversion, job.OutputDir, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, nil, fmt.Errorf("%w: creating output directory %s: %w", types.ErrConversion, outDir, err)
	}

	p, err := pres.Open(ctx, job.Document.Path)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: opening %s: %w", types.ErrConversion, job.Document.Name, err)
	}
	defer c.closeBackend(ctx, job.Document.Name, p.Close)

	count, err := p.SlideCount(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: counting slides of %s: %w", types.ErrConversion, job.Document.Name, err)
	}
	fmt.Fprintf(c.w, "  slides: %d\n", count)

	wPts, hPts, err := p.SlideSize(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading slide size of %s: %w", types.ErrConversion, job.Document.Name, err)
	}
	width, height := raster.ScaledSize(wPts, hPts, c.dpi)
	format := c.raster.Format()
	filter := exportFilter(format)

	var (
		written int
		failed  []int
	)
	for i := 1; i <= count; i++ {
		name := raster.ImageName("slide", i, format)
		if err := p.ExportSlide(ctx, i, filepath.Join(outDir, name), filter, width, height); err != nil {
			if errors.Is(err, types.ErrBackendTimeout) {
				return written, failed, err
			}
			fmt.Fprintf(c.w, "    %s slide %d export failed: %v\n", progress.Warning(), i, err)
			failed = append(failed, i)
			continue
		}
		written++
		fmt.Fprintf(c.w, "    %s %s\n", progress.OK(), name)
	}
	if len(failed) > 0 {
		return written, failed, fmt.Errorf("%w: %s: %d of %d slides", types.ErrPageExport, job.Document.Name, len(failed), count)
	}
	return written, nil, nil
}

func exportFilter(f types.ImageFormat) backend.ExportFilter {
	if f == types.ImageJPG {
		return backend.FilterJPG
	}
	return backend.FilterPNG
}

func checkSource(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", types.ErrSourceNotFound, path)
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}
	return nil
}

func (c *Converter) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.log.WithError(fmt.Errorf("%w: %v", types.ErrCleanup, err)).WithField("file", path).Debug("removing temporary PDF failed")
	}
}

func (c *Converter) closeBackend(ctx context.Context, name string, closeFn func(context.Context) error) {
	closeBackend(ctx, c.log, name, closeFn)
}

// closeBackend closes a backend document, logging failure at debug level.
func closeBackend(ctx context.Context, log *logrus.Logger, name string, closeFn func(context.Context) error) {
	if err := closeFn(ctx); err != nil {
		log.WithError(fmt.Errorf("%w: %v", types.ErrCleanup, err)).WithField("file", name).Debug("closing document failed")
	}
}
