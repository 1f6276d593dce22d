// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch runs one conversion batch: discover the input files,
// verify the backends they need, process each file and finalize the run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/office2img/internal/backend"
	"github.com/pdiddy/office2img/internal/convert"
	"github.com/pdiddy/office2img/internal/progress"
	"github.com/pdiddy/office2img/internal/raster"
	"github.com/pdiddy/office2img/pkg/types"
)

var rule = strings.Repeat("=", 60)

// Orchestrator runs batches against one session manager.
type Orchestrator struct {
	cfg  types.Config
	mgr  *backend.Manager
	open raster.Opener
	w    io.Writer
	log  *logrus.Logger
	now  func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOpener replaces the PDF renderer.
func WithOpener(open raster.Opener) Option {
	return func(o *Orchestrator) { o.open = open }
}

// WithOutput directs the progress log to w.
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.w = w }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *logrus.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an Orchestrator for cfg whose backend sessions come from mgr.
func New(cfg types.Config, mgr *backend.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:  cfg,
		mgr:  mgr,
		open: raster.OpenFitz,
		w:    io.Discard,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logrus.New()
		o.log.SetOutput(io.Discard)
	}
	return o
}

// Discover lists the regular files in dir the mode can process, in
// directory order. Subdirectories are not searched.
func Discover(dir string, mode types.Mode) ([]types.SourceDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory %s: %w", dir, err)
	}
	var docs []types.SourceDocument
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		doc, ok := types.NewSourceDocument(path)
		if !ok || !types.SupportsFormat(mode, doc.Format) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// RequiredBackends returns the applications a batch over docs needs, in
// start order. PDFs need none; text mode only needs presentations.
func RequiredBackends(mode types.Mode, docs []types.SourceDocument) []backend.AppType {
	if len(docs) == 0 {
		return nil
	}
	if mode == types.ModeText {
		return []backend.AppType{backend.PresentationApp}
	}
	var needDoc, needDeck bool
	for _, d := range docs {
		switch d.Format {
		case types.FormatDOCX:
			needDoc = true
		case types.FormatPPTX:
			needDeck = true
		}
	}
	var apps []backend.AppType
	if needDoc {
		apps = append(apps, backend.DocumentApp)
	}
	if needDeck {
		apps = append(apps, backend.PresentationApp)
	}
	return apps
}

func supportedList(mode types.Mode) string {
	exts := types.SupportedExtensions(mode)
	names := make([]string, len(exts))
	for i, e := range exts {
		names[i] = strings.ToUpper(strings.TrimPrefix(e, "."))
	}
	return strings.Join(names, ", ")
}

// Run executes the batch. It returns ErrNoInputFiles,
// ErrBackendUnavailable or ErrBackendTimeout when the run ends early; every
// other failure is contained in the file's result.
func (o *Orchestrator) Run(ctx context.Context) (res types.BatchResult, err error) {
	res.StartedAt = o.now()
	defer func() { res.FinishedAt = o.now() }()

	fmt.Fprintln(o.w, rule)
	if o.cfg.Mode == types.ModeText {
		fmt.Fprintln(o.w, "  Presentation text extraction")
	} else {
		fmt.Fprintf(o.w, "  Document to image conversion (%s)\n", o.mgr.Driver())
	}
	fmt.Fprintln(o.w, rule)

	docs, err := Discover(o.cfg.InputDir, o.cfg.Mode)
	if err != nil {
		res.Status = types.BatchAborted
		return res, err
	}
	if len(docs) == 0 {
		fmt.Fprintf(o.w, "\n%s no files to process in %s\n", progress.Warning(), o.cfg.InputDir)
		fmt.Fprintf(o.w, "Supported formats: %s\n", supportedList(o.cfg.Mode))
		res.Status = types.BatchNoInput
		return res, fmt.Errorf("%w in %s", types.ErrNoInputFiles, o.cfg.InputDir)
	}
	fmt.Fprintf(o.w, "\nFound %d files\n", len(docs))

	// Sessions are released on every path, including a failed preflight.
	defer o.mgr.ShutdownAll(context.WithoutCancel(ctx))

	if err := o.preflight(ctx, docs); err != nil {
		res.Status = types.BatchAborted
		return res, err
	}

	var fatal error
	if o.cfg.Mode == types.ModeText {
		fatal = o.runText(ctx, docs, &res)
	} else {
		fatal = o.runImages(ctx, docs, &res)
	}
	res.Status = types.BatchCompleted
	if fatal != nil {
		res.Status = types.BatchTimedOut
	}
	o.summary(res)
	return res, fatal
}

func (o *Orchestrator) preflight(ctx context.Context, docs []types.SourceDocument) error {
	apps := RequiredBackends(o.cfg.Mode, docs)
	if len(apps) == 0 {
		return nil
	}
	fmt.Fprintf(o.w, "\nChecking %s backend...\n", o.mgr.Driver())
	for _, app := range apps {
		if err := o.mgr.Probe(ctx, app); err != nil {
			fmt.Fprintf(o.w, "  %s %v\n", progress.Error(), err)
			fmt.Fprintln(o.w, "A working backend is required for DOCX and PPTX files; nothing was converted.")
			return err
		}
		fmt.Fprintf(o.w, "  %s %s application available\n", progress.OK(), app)
	}
	return nil
}

func (o *Orchestrator) runImages(ctx context.Context, docs []types.SourceDocument, res *types.BatchResult) error {
	r := raster.New(o.open, o.cfg.ImageFormat, o.w, o.log)
	conv := convert.New(o.mgr, r, o.cfg.DPI, o.w, o.log)

	// Stems are compared case-insensitively; report.pdf and Report.docx
	// collide on case-insensitive filesystems.
	owners := make(map[string]string, len(docs))
	for i, doc := range docs {
		o.fileHeader(i, len(docs), doc)
		job := types.NewConversionJob(doc, o.cfg.Mode, o.cfg.OutputDir)
		key := strings.ToLower(job.OutputDir)
		if prev, ok := owners[key]; ok {
			fmt.Fprintf(o.w, "  %s %s shares output folder %s with %s; its pages replace the earlier ones\n",
				progress.Warning(), doc.Name, job.OutputDir, prev)
		} else {
			owners[key] = doc.Name
		}
		fr, err := o.guard(doc, func() (types.FileResult, error) {
			return conv.Convert(ctx, job)
		})
		o.record(res, fr, err)
		if errors.Is(err, types.ErrBackendTimeout) {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runText(ctx context.Context, docs []types.SourceDocument, res *types.BatchResult) error {
	ex := convert.NewExtractor(o.mgr, o.w, o.log)
	t := convert.NewTranscript(o.now(), len(docs))

	var fatal error
	for i, doc := range docs {
		o.fileHeader(i, len(docs), doc)
		fr, err := o.guard(doc, func() (types.FileResult, error) {
			return ex.Extract(ctx, doc, t)
		})
		o.record(res, fr, err)
		if errors.Is(err, types.ErrBackendTimeout) {
			fatal = err
			break
		}
	}

	// The transcript is written even after a timeout.
	path, err := t.WriteFile(o.cfg.OutputDir)
	if err != nil {
		fmt.Fprintf(o.w, "\n%s %v\n", progress.Error(), err)
		o.log.WithError(err).Warn("transcript not written")
		return fatal
	}
	res.Artifact = path
	fmt.Fprintf(o.w, "\n  %s transcript saved: %s\n", progress.Done(), path)
	return fatal
}

func (o *Orchestrator) fileHeader(i, n int, doc types.SourceDocument) {
	fmt.Fprintf(o.w, "\n%s %s (%d/%d)\n", progress.File(), doc.Name, i+1, n)
}

// guard runs one file's work, turning a panic into a failed result.
func (o *Orchestrator) guard(doc types.SourceDocument, fn func() (types.FileResult, error)) (fr types.FileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", types.ErrConversion, doc.Name, r)
			fr = types.FileResult{Name: doc.Name, Format: doc.Format, Status: types.ConversionFailed, Error: err.Error()}
			o.log.WithField("file", doc.Name).WithField("panic", r).Error("recovered from panic")
		}
	}()
	return fn()
}

func (o *Orchestrator) record(res *types.BatchResult, fr types.FileResult, err error) {
	res.Add(fr)
	switch fr.Status {
	case types.ConversionDone:
		fmt.Fprintf(o.w, "  %s %s: %d pages\n", progress.OK(), fr.Name, fr.Pages)
	case types.ConversionPartial:
		fmt.Fprintf(o.w, "  %s %s: %d pages written, failed %v\n", progress.Warning(), fr.Name, fr.Pages, fr.FailedPages)
	case types.ConversionSkipped:
		fmt.Fprintf(o.w, "  %s %s skipped: %v\n", progress.Warning(), fr.Name, err)
	default:
		fmt.Fprintf(o.w, "  %s %s: %v\n", progress.Error(), fr.Name, err)
	}
	if err != nil {
		o.log.WithError(err).WithFields(logrus.Fields{
			"file":   fr.Name,
			"status": fr.Status,
		}).Debug("file not fully converted")
	}
}

func (o *Orchestrator) summary(res types.BatchResult) {
	fmt.Fprintf(o.w, "\n%s\n", rule)
	fmt.Fprintf(o.w, "Batch summary: %d converted, %d partial, %d failed, %d skipped (total: %d)\n",
		res.Count(types.ConversionDone), res.Count(types.ConversionPartial),
		res.Count(types.ConversionFailed), res.Count(types.ConversionSkipped), res.Total())

	loc, err := filepath.Abs(o.cfg.OutputDir)
	if err != nil {
		loc = o.cfg.OutputDir
	}
	switch {
	case res.Status == types.BatchTimedOut:
		fmt.Fprintf(o.w, "%s backend timed out; batch stopped early. Output so far: %s\n", progress.Error(), loc)
	case o.cfg.Mode == types.ModeText && res.Artifact != "":
		fmt.Fprintf(o.w, "%s combined text saved to: %s\n", progress.Done(), filepath.Join(loc, convert.TranscriptName))
	default:
		fmt.Fprintf(o.w, "%s all images saved to: %s\n", progress.Done(), loc)
	}
	fmt.Fprintln(o.w, rule)
}
