// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/office2img/internal/backend"
	"github.com/pdiddy/office2img/internal/backend/backendtest"
	"github.com/pdiddy/office2img/internal/raster"
	"github.com/pdiddy/office2img/pkg/types"
)

// pages is a raster.Document with n blank pages.
type pages int

func (p pages) NumPage() int { return int(p) }

func (p pages) ImageDPI(int, float64) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (p pages) Close() error { return nil }

func openPages(n int) raster.Opener {
	return func(string) (raster.Document, error) { return pages(n), nil }
}

type fixture struct {
	dir  string
	out  string
	drv  *backendtest.Driver
	mgr  *backend.Manager
	conv *Converter
	log  bytes.Buffer
}

func newFixture(t *testing.T, open raster.Opener, limit time.Duration) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir(), drv: backendtest.NewDriver()}
	f.out = filepath.Join(f.dir, "screenshots")
	f.mgr = backend.NewManager(f.drv, limit, nil)
	t.Cleanup(func() { f.mgr.ShutdownAll(context.Background()) })
	r := raster.New(open, types.ImagePNG, &f.log, nil)
	f.conv = New(f.mgr, r, 100, &f.log, nil)
	return f
}

// job writes a placeholder source file and returns its job.
func (f *fixture) job(t *testing.T, name string) types.ConversionJob {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("source"), 0o644))
	doc, ok := types.NewSourceDocument(path)
	require.True(t, ok)
	return types.NewConversionJob(doc, types.ModeImages, f.out)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestConvert_PDF(t *testing.T) {
	f := newFixture(t, openPages(3), 0)
	job := f.job(t, "sample.pdf")

	res, err := f.conv.Convert(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, types.ConversionDone, res.Status)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, []string{"page_001.png", "page_002.png", "page_003.png"}, listDir(t, job.OutputDir))
	assert.Zero(t, f.drv.Inits, "PDFs need no backend")
}

func TestConvert_MissingSource(t *testing.T) {
	f := newFixture(t, openPages(1), 0)
	for _, name := range []string{"gone.pdf", "gone.docx", "gone.pptx"} {
		t.Run(name, func(t *testing.T) {
			doc, _ := types.NewSourceDocument(filepath.Join(f.dir, name))
			res, err := f.conv.Convert(context.Background(), types.NewConversionJob(doc, types.ModeImages, f.out))
			assert.ErrorIs(t, err, types.ErrSourceNotFound)
			assert.Equal(t, types.ConversionSkipped, res.Status)
		})
	}
	_, err := os.Stat(f.out)
	assert.True(t, os.IsNotExist(err))
}

func TestConvert_DOCX(t *testing.T) {
	f := newFixture(t, openPages(2), 0)
	doc := &backendtest.Doc{Pages: 2}
	f.drv.Documents["report.docx"] = doc
	job := f.job(t, "report.docx")

	res, err := f.conv.Convert(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, types.ConversionDone, res.Status)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, []string{"page_001.png", "page_002.png"}, listDir(t, job.OutputDir), "temporary PDF removed")
	assert.Equal(t, 1, doc.Closes)
	assert.Contains(t, f.log.String(), "document pages: 2")
	assert.NotContains(t, f.log.String(), "[WARNING]")
}

func TestConvert_DOCXPageCountMismatchWarns(t *testing.T) {
	f := newFixture(t, openPages(3), 0)
	doc := &backendtest.Doc{Pages: 2}
	f.drv.Documents["report.docx"] = doc
	job := f.job(t, "report.docx")

	res, err := f.conv.Convert(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, types.ConversionDone, res.Status)
	assert.Equal(t, 3, res.Pages)
	assert.Contains(t, f.log.String(), "[WARNING] report.docx: application reported 2 pages, exported PDF has 3")
}

func TestConvert_DOCXFailuresRemoveTempPDF(t *testing.T) {
	tests := []struct {
		name string
		doc  *backendtest.Doc
		open raster.Opener
	}{
		{
			name: "export fails after partial write",
			doc:  &backendtest.Doc{Pages: 2, ExportErr: errors.New("export crashed"), PartialPDF: true},
			open: openPages(2),
		},
		{
			name: "rasterization fails",
			doc:  &backendtest.Doc{Pages: 2},
			open: func(string) (raster.Document, error) { return nil, errors.New("corrupt PDF") },
		},
		{
			name: "page count unavailable",
			doc:  &backendtest.Doc{PageCountErr: errors.New("no statistic"), ExportErr: errors.New("export crashed")},
			open: openPages(1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.open, 0)
			f.drv.Documents["report.docx"] = tt.doc
			job := f.job(t, "report.docx")

			res, err := f.conv.Convert(context.Background(), job)
			assert.ErrorIs(t, err, types.ErrConversion)
			assert.Equal(t, types.ConversionFailed, res.Status)
			assert.NotEmpty(t, res.Error)
			assert.NoFileExists(t, filepath.Join(job.OutputDir, tempPDFName))
			assert.Equal(t, 1, tt.doc.Closes, "document closed on failure")
		})
	}
}

func TestConvert_PPTX(t *testing.T) {
	f := newFixture(t, openPages(1), 0)
	deck := &backendtest.Deck{Width: 720, Height: 540, Slides: make([]backendtest.Slide, 3)}
	f.drv.Decks["deck.pptx"] = deck
	job := f.job(t, "deck.pptx")

	res, err := f.conv.Convert(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, types.ConversionDone, res.Status)
	assert.Equal(t, 3, res.Pages)
	require.Len(t, deck.Exports, 3)
	for i, e := range deck.Exports {
		assert.Equal(t, i+1, e.Index)
		assert.Equal(t, backend.FilterPNG, e.Filter)
		assert.Equal(t, 1000, e.Width)
		assert.Equal(t, 750, e.Height)
		assert.True(t, filepath.IsAbs(e.Path))
	}
	assert.Equal(t, []string{"slide_001.png", "slide_002.png", "slide_003.png"}, listDir(t, job.OutputDir))
	assert.Equal(t, 1, deck.Closes)
}

func TestConvert_PPTXSlideFailureIsIsolated(t *testing.T) {
	f := newFixture(t, openPages(1), 0)
	decks := []string{"a.pptx", "b.pptx", "c.pptx"}
	for _, name := range decks {
		f.drv.Decks[name] = &backendtest.Deck{Width: 720, Height: 540, Slides: make([]backendtest.Slide, 3)}
	}
	f.drv.Decks["b.pptx"].Slides[1].ExportErr = errors.New("slide export crashed")

	results := map[string]types.FileResult{}
	for _, name := range decks {
		res, _ := f.conv.Convert(context.Background(), f.job(t, name))
		results[name] = res
	}

	assert.Equal(t, types.ConversionDone, results["a.pptx"].Status)
	assert.Equal(t, types.ConversionDone, results["c.pptx"].Status)
	assert.Equal(t, types.ConversionPartial, results["b.pptx"].Status)
	assert.Equal(t, []int{2}, results["b.pptx"].FailedPages)
	assert.Equal(t, 2, results["b.pptx"].Pages)

	assert.Equal(t, []string{"slide_001.png", "slide_003.png"}, listDir(t, filepath.Join(f.out, "b")))
	for _, stem := range []string{"a", "c"} {
		assert.Len(t, listDir(t, filepath.Join(f.out, stem)), 3)
	}
	assert.Equal(t, 1, f.drv.Starts[backend.PresentationApp], "one session for the whole batch")
	assert.Contains(t, f.log.String(), "[WARNING] slide 2 export failed")
}

func TestConvert_PPTXTimeoutStops(t *testing.T) {
	f := newFixture(t, openPages(1), 20*time.Millisecond)
	deck := &backendtest.Deck{Width: 720, Height: 540, Slides: make([]backendtest.Slide, 3)}
	deck.Slides[1].Delay = time.Second
	f.drv.Decks["slow.pptx"] = deck

	res, err := f.conv.Convert(context.Background(), f.job(t, "slow.pptx"))
	assert.ErrorIs(t, err, types.ErrBackendTimeout)
	assert.Equal(t, types.ConversionFailed, res.Status)
	assert.Equal(t, 1, res.Pages)
}

func TestConvert_JPEG(t *testing.T) {
	f := newFixture(t, openPages(1), 0)
	f.conv.raster = raster.New(openPages(1), types.ImageJPG, nil, nil)
	deck := &backendtest.Deck{Width: 720, Height: 405, Slides: make([]backendtest.Slide, 1)}
	f.drv.Decks["wide.pptx"] = deck

	_, err := f.conv.Convert(context.Background(), f.job(t, "wide.pptx"))
	require.NoError(t, err)
	require.Len(t, deck.Exports, 1)
	assert.Equal(t, backend.FilterJPG, deck.Exports[0].Filter)
	assert.Equal(t, "slide_001.jpg", filepath.Base(deck.Exports[0].Path))
	assert.Equal(t, 562, deck.Exports[0].Height)
}

func TestConvert_BackendStartFailure(t *testing.T) {
	f := newFixture(t, openPages(1), 0)
	f.drv.StartErr[backend.DocumentApp] = errors.New("Word is not installed")

	res, err := f.conv.Convert(context.Background(), f.job(t, "memo.docx"))
	require.Error(t, err)
	assert.Equal(t, types.ConversionFailed, res.Status)
	assert.Contains(t, res.Error, "Word is not installed")
}
