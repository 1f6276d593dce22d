// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/office2img/internal/backend"
	"github.com/pdiddy/office2img/internal/backend/backendtest"
	"github.com/pdiddy/office2img/internal/convert"
	"github.com/pdiddy/office2img/internal/raster"
	"github.com/pdiddy/office2img/pkg/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var clock = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

type pages int

func (p pages) NumPage() int { return int(p) }

func (p pages) ImageDPI(int, float64) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (p pages) Close() error { return nil }

func openPages(n int) raster.Opener {
	return func(string) (raster.Document, error) { return pages(n), nil }
}

type harness struct {
	in, out string
	drv     *backendtest.Driver
	log     bytes.Buffer
	cfg     types.Config
}

func newHarness(t *testing.T, mode types.Mode) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		in:  filepath.Join(root, "in"),
		out: filepath.Join(root, "screenshots"),
		drv: backendtest.NewDriver(),
	}
	require.NoError(t, os.MkdirAll(h.in, 0o755))
	h.cfg = types.DefaultConfig()
	h.cfg.InputDir = h.in
	h.cfg.OutputDir = h.out
	h.cfg.Mode = mode
	h.cfg.DPI = 144
	return h
}

func (h *harness) touch(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(h.in, n), []byte("x"), 0o644))
	}
}

func (h *harness) run(t *testing.T, limit time.Duration, open raster.Opener) (types.BatchResult, error) {
	t.Helper()
	mgr := backend.NewManager(h.drv, limit, nil)
	o := New(h.cfg, mgr, WithOpener(open), WithOutput(&h.log), WithClock(func() time.Time { return clock }))
	return o.Run(context.Background())
}

func names(docs []types.SourceDocument) []string {
	var out []string
	for _, d := range docs {
		out = append(out, d.Name)
	}
	return out
}

func TestDiscover(t *testing.T) {
	h := newHarness(t, types.ModeImages)
	h.touch(t, "b.pdf", "A.DOCX", "notes.txt", "deck.pptx", "old.ppt", "memo.doc")
	require.NoError(t, os.MkdirAll(filepath.Join(h.in, "nested.pdf"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(h.in, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.in, "sub", "inner.pdf"), []byte("x"), 0o644))

	docs, err := Discover(h.in, types.ModeImages)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.DOCX", "b.pdf", "deck.pptx", "memo.doc", "old.ppt"}, names(docs))
	assert.Equal(t, types.FormatDOCX, docs[0].Format)
	assert.Equal(t, types.FormatPPTX, docs[4].Format)

	docs, err = Discover(h.in, types.ModeText)
	require.NoError(t, err)
	assert.Equal(t, []string{"deck.pptx", "old.ppt"}, names(docs))

	_, err = Discover(filepath.Join(h.in, "missing"), types.ModeImages)
	assert.Error(t, err)
}

func TestRequiredBackends(t *testing.T) {
	doc := func(name string) types.SourceDocument {
		d, _ := types.NewSourceDocument(name)
		return d
	}
	tests := []struct {
		name string
		mode types.Mode
		docs []types.SourceDocument
		want []backend.AppType
	}{
		{"none", types.ModeImages, nil, nil},
		{"pdf only", types.ModeImages, []types.SourceDocument{doc("a.pdf")}, nil},
		{"docx", types.ModeImages, []types.SourceDocument{doc("a.pdf"), doc("b.docx")}, []backend.AppType{backend.DocumentApp}},
		{"both", types.ModeImages, []types.SourceDocument{doc("c.pptx"), doc("b.doc")}, []backend.AppType{backend.DocumentApp, backend.PresentationApp}},
		{"text", types.ModeText, []types.SourceDocument{doc("c.pptx")}, []backend.AppType{backend.PresentationApp}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredBackends(tt.mode, tt.docs))
		})
	}
}

func TestRun_NoInputFiles(t *testing.T) {
	h := newHarness(t, types.ModeImages)
	h.touch(t, "readme.md")

	res, err := h.run(t, 0, openPages(1))
	assert.ErrorIs(t, err, types.ErrNoInputFiles)
	assert.Equal(t, types.BatchNoInput, res.Status)
	assert.Zero(t, h.drv.Inits, "no backend touched")
	assert.NoDirExists(t, h.out)
	assert.Contains(t, h.log.String(), "Supported formats: PDF, DOCX, DOC, PPTX, PPT")
}

func TestRun_PreflightAbort(t *testing.T) {
	h := newHarness(t, types.ModeImages)
	h.touch(t, "deck.pptx", "sample.pdf")
	h.drv.Decks["deck.pptx"] = &backendtest.Deck{Width: 720, Height: 540, Slides: make([]backendtest.Slide, 2)}
	h.drv.StartErr[backend.PresentationApp] = errors.New("PowerPoint is not installed")

	res, err := h.run(t, 0, openPages(1))
	assert.ErrorIs(t, err, types.ErrBackendUnavailable)
	assert.Equal(t, types.BatchAborted, res.Status)
	assert.Empty(t, res.Files, "no file processed")
	assert.NoDirExists(t, h.out, "output directory not created")
	assert.Equal(t, 1, h.drv.Uninits, "driver state released after abort")
	assert.Contains(t, h.log.String(), "[ERROR]")
}

func TestRun_Images(t *testing.T) {
	h := newHarness(t, types.ModeImages)
	h.touch(t, "sample.pdf", "deck.pptx")
	h.drv.Decks["deck.pptx"] = &backendtest.Deck{Width: 720, Height: 540, Slides: []backendtest.Slide{
		{Shapes: []backend.Shape{backendtest.Text("Title")}},
		{},
	}}

	res, err := h.run(t, time.Minute, openPages(3))
	require.NoError(t, err)
	assert.Equal(t, types.BatchCompleted, res.Status)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "deck.pptx", res.Files[0].Name)
	assert.Equal(t, 2, res.Files[0].Pages)
	assert.Equal(t, "sample.pdf", res.Files[1].Name)
	assert.Equal(t, 3, res.Files[1].Pages)
	assert.False(t, res.HasFailures())
	assert.Equal(t, clock, res.StartedAt)
	assert.Equal(t, clock, res.FinishedAt)

	for _, f := range []string{"sample/page_001.png", "sample/page_002.png", "sample/page_003.png", "deck/slide_001.png", "deck/slide_002.png"} {
		assert.FileExists(t, filepath.Join(h.out, f))
	}
	exports := h.drv.Decks["deck.pptx"].Exports
	require.Len(t, exports, 2)
	assert.Equal(t, 1440, exports[0].Width)
	assert.Equal(t, 1080, exports[0].Height)

	assert.Equal(t, 2, h.drv.Starts[backend.PresentationApp], "probe plus one batch session")
	assert.Equal(t, 2, h.drv.Quits[backend.PresentationApp])
	assert.Zero(t, h.drv.Starts[backend.DocumentApp])
	assert.Equal(t, 1, h.drv.Uninits)

	out := h.log.String()
	assert.Contains(t, out, "[FILE] deck.pptx (1/2)")
	assert.Contains(t, out, "[FILE] sample.pdf (2/2)")
	assert.Contains(t, out, "Batch summary: 2 converted, 0 partial, 0 failed, 0 skipped (total: 2)")
	assert.Contains(t, out, "[DONE] all images saved to: "+h.out)
}

func TestRun_FailuresAreContained(t *testing.T) {
	h := newHarness(t, types.ModeImages)
	h.touch(t, "a.pdf", "b.docx", "c.pptx")
	h.drv.Documents["b.docx"] = &backendtest.Doc{ExportErr: errors.New("export crashed")}
	h.drv.Decks["c.pptx"] = &backendtest.Deck{Width: 72, Height: 72, Slides: []backendtest.Slide{
		{}, {ExportErr: errors.New("bad slide")}, {},
	}}

	open := func(path string) (raster.Document, error) {
		if filepath.Base(path) == "a.pdf" {
			panic("renderer crashed")
		}
		return pages(1), nil
	}
	res, err := h.run(t, 0, open)
	require.NoError(t, err)
	assert.Equal(t, types.BatchCompleted, res.Status)
	require.Len(t, res.Files, 3)
	assert.Equal(t, types.ConversionFailed, res.Files[0].Status)
	assert.Contains(t, res.Files[0].Error, "panic: renderer crashed")
	assert.Equal(t, types.ConversionFailed, res.Files[1].Status)
	assert.Equal(t, types.ConversionPartial, res.Files[2].Status)
	assert.True(t, res.HasFailures())
	assert.NoFileExists(t, filepath.Join(h.out, "b", "temp_export.pdf"))
	assert.Contains(t, h.log.String(), "Batch summary: 0 converted, 1 partial, 2 failed, 0 skipped (total: 3)")
}

func TestRun_SlideFailureIsolatedAcrossFiles(t *testing.T) {
	h := newHarness(t, types.ModeImages)
	h.touch(t, "q1.pptx", "q2.pptx", "q3.pptx")
	for _, name := range []string{"q1.pptx", "q2.pptx", "q3.pptx"} {
		h.drv.Decks[name] = &backendtest.Deck{Width: 720, Height: 540, Slides: make([]backendtest.Slide, 3)}
	}
	h.drv.Decks["q2.pptx"].Slides[1].ExportErr = errors.New("slide export crashed")

	res, err := h.run(t, time.Minute, openPages(1))
	require.NoError(t, err)
	assert.Equal(t, types.BatchCompleted, res.Status)
	require.Len(t, res.Files, 3)
	assert.Equal(t, types.ConversionDone, res.Files[0].Status)
	assert.Equal(t, types.ConversionPartial, res.Files[1].Status)
	assert.Equal(t, []int{2}, res.Files[1].FailedPages)
	assert.Equal(t, types.ConversionDone, res.Files[2].Status)

	for _, stem := range []string{"q1", "q3"} {
		for _, slide := range []string{"slide_001.png", "slide_002.png", "slide_003.png"} {
			assert.FileExists(t, filepath.Join(h.out, stem, slide))
		}
	}
	assert.FileExists(t, filepath.Join(h.out, "q2", "slide_001.png"))
	assert.NoFileExists(t, filepath.Join(h.out, "q2", "slide_002.png"))
	assert.FileExists(t, filepath.Join(h.out, "q2", "slide_003.png"))
	assert.Equal(t, 2, h.drv.Starts[backend.PresentationApp], "probe plus one session for all three decks")
	assert.Contains(t, h.log.String(), "Batch summary: 2 converted, 1 partial, 0 failed, 0 skipped (total: 3)")
}

func TestRun_SharedOutputFolderWarns(t *testing.T) {
	h := newHarness(t, types.ModeImages)
	h.touch(t, "report.docx", "report.pdf", "summary.pdf")
	h.drv.Documents["report.docx"] = &backendtest.Doc{Pages: 1}

	res, err := h.run(t, time.Minute, openPages(1))
	require.NoError(t, err)
	require.Len(t, res.Files, 3)

	out := h.log.String()
	assert.Contains(t, out, "[WARNING] report.pdf shares output folder "+filepath.Join(h.out, "report")+" with report.docx")
	assert.Equal(t, 1, strings.Count(out, "shares output folder"))
}

func TestRun_TimeoutStopsBatch(t *testing.T) {
	h := newHarness(t, types.ModeImages)
	h.touch(t, "a.pptx", "b.pptx")
	slow := &backendtest.Deck{Width: 72, Height: 72, Slides: []backendtest.Slide{{Delay: time.Second}}}
	next := &backendtest.Deck{Width: 72, Height: 72, Slides: make([]backendtest.Slide, 1)}
	h.drv.Decks["a.pptx"] = slow
	h.drv.Decks["b.pptx"] = next

	res, err := h.run(t, 20*time.Millisecond, openPages(1))
	assert.ErrorIs(t, err, types.ErrBackendTimeout)
	assert.Equal(t, types.BatchTimedOut, res.Status)
	require.Len(t, res.Files, 1)
	assert.Zero(t, next.Opens, "batch stopped before the next file")
	assert.Equal(t, 1, h.drv.Uninits, "sessions still shut down")
	assert.Contains(t, h.log.String(), "backend timed out")
}

func TestRun_Text(t *testing.T) {
	h := newHarness(t, types.ModeText)
	h.touch(t, "deck.pptx", "sample.pdf")
	h.drv.Decks["deck.pptx"] = &backendtest.Deck{Slides: []backendtest.Slide{
		{Shapes: []backend.Shape{backendtest.Text("Welcome"), backendtest.Picture()}},
		{Shapes: []backend.Shape{backendtest.Picture()}},
	}}

	res, err := h.run(t, 0, openPages(1))
	require.NoError(t, err)
	require.Len(t, res.Files, 1, "PDFs are not discovered in text mode")
	assert.Equal(t, filepath.Join(h.out, convert.TranscriptName), res.Artifact)

	data, err := os.ReadFile(res.Artifact)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, strings.Repeat("#", 80)+"\n  COMBINED TEXT OF ALL PRESENTATIONS\n  Created: 2026-06-01 08:30:00\n  Total files: 1"))
	assert.Contains(t, text, "PRESENTATION: deck.pptx")
	assert.Contains(t, text, "SLIDE 1")
	assert.Contains(t, text, "Welcome")
	assert.Contains(t, text, "SLIDE 2")
	assert.Contains(t, text, convert.NoTextMarker)
	assert.Less(t, strings.Index(text, "Welcome"), strings.Index(text, convert.NoTextMarker))

	assert.NoDirExists(t, filepath.Join(h.out, "deck"), "text mode writes no images")
	assert.Zero(t, h.drv.Starts[backend.DocumentApp])
	assert.Contains(t, h.log.String(), "[DONE] combined text saved to:")
}
