// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package libreoffice drives LibreOffice in headless mode as the document
// and presentation backend.
//
// soffice has no persistent automation channel from the command line, so a
// session is a private user profile reused by every conversion of the
// batch; each export is one headless soffice run against that profile.
// Slides are exported by converting the deck to PDF once and rendering the
// requested page to the requested pixel size.
package libreoffice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/office2img/internal/backend"
	"github.com/pdiddy/office2img/internal/raster"
	"github.com/pdiddy/office2img/pkg/types"
)

const (
	filterWriterPDF = "pdf:writer_pdf_Export"
	// Hidden slides are exported too so PDF page k is always slide k.
	filterImpressPDF = `pdf:impress_pdf_Export:{"ExportHiddenSlides":{"type":"boolean","value":"true"}}`
)

// PDFInfo reads page geometry from a PDF.
type PDFInfo interface {
	PageCount(path string) (int, error)
	// PageSize returns the size of the first page in points.
	PageSize(path string) (width, height float64, err error)
}

type pdfcpuInfo struct{}

func (pdfcpuInfo) PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

func (pdfcpuInfo) PageSize(path string) (float64, float64, error) {
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return 0, 0, err
	}
	if len(dims) == 0 {
		return 0, 0, fmt.Errorf("%s has no pages", path)
	}
	return dims[0].Width, dims[0].Height, nil
}

// Driver implements backend.Driver on top of soffice.
type Driver struct {
	runner Runner
	open   raster.Opener
	info   PDFInfo
	log    *logrus.Logger

	root string // scratch root for profiles and exports; set by Init
}

// Option configures a Driver.
type Option func(*Driver)

// WithOpener replaces the PDF renderer used for slide export.
func WithOpener(open raster.Opener) Option {
	return func(d *Driver) { d.open = open }
}

// WithPDFInfo replaces the PDF geometry reader.
func WithPDFInfo(info PDFInfo) Option {
	return func(d *Driver) { d.info = info }
}

// New returns a Driver running soffice through runner.
func New(runner Runner, log *logrus.Logger, opts ...Option) *Driver {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	d := &Driver{
		runner: runner,
		open:   raster.OpenFitz,
		info:   pdfcpuInfo{},
		log:    log,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Driver) Name() string { return "libreoffice" }

// Init creates the scratch root shared by every session of the batch.
func (d *Driver) Init() error {
	root, err := os.MkdirTemp("", "office2img-lo-")
	if err != nil {
		return fmt.Errorf("creating LibreOffice scratch directory: %w", err)
	}
	d.root = root
	return nil
}

// Uninit removes the scratch root.
func (d *Driver) Uninit() {
	if d.root == "" {
		return
	}
	if err := os.RemoveAll(d.root); err != nil {
		d.log.WithError(err).WithField("dir", d.root).Debug("removing LibreOffice scratch directory failed")
	}
	d.root = ""
}

// Start prepares a private profile and checks that soffice answers.
func (d *Driver) Start(ctx context.Context, app backend.AppType) (backend.Session, error) {
	if d.root == "" {
		return nil, errors.New("libreoffice driver not initialized")
	}
	if err := d.runner.Check(ctx); err != nil {
		return nil, err
	}
	profile, err := os.MkdirTemp(d.root, string(app)+"-profile-")
	if err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	s := &session{drv: d, profile: profile}
	out, err := d.runner.Run(ctx, s.args("--version"), []string{profile})
	if err != nil {
		os.RemoveAll(profile)
		return nil, fmt.Errorf("%s did not start: %w: %s", d.runner.Name(), err, strings.TrimSpace(string(out)))
	}
	d.log.WithFields(logrus.Fields{
		"app":     app,
		"runner":  d.runner.Name(),
		"version": strings.TrimSpace(string(out)),
	}).Debug("LibreOffice session ready")

	switch app {
	case backend.DocumentApp:
		return &writer{s}, nil
	case backend.PresentationApp:
		return &impress{s}, nil
	}
	os.RemoveAll(profile)
	return nil, fmt.Errorf("unknown application type %q", app)
}

// session holds the profile shared by one app type's conversions.
type session struct {
	drv     *Driver
	profile string
}

func (s *session) args(extra ...string) []string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(s.profile)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	base := []string{
		"-env:UserInstallation=" + u.String(),
		"--headless", "--invisible", "--nologo", "--nodefault",
		"--norestore", "--nolockcheck",
	}
	return append(base, extra...)
}

func (s *session) Quit(context.Context) error {
	return os.RemoveAll(s.profile)
}

// convert runs one headless conversion of src into dir and returns the
// path of the produced file.
func (s *session) convert(ctx context.Context, src, filter, dir string) (string, error) {
	args := s.args("--convert-to", filter, "--outdir", dir, src)
	out, err := s.drv.runner.Run(ctx, args, []string{dir, filepath.Dir(src), s.profile})
	if err != nil {
		return "", fmt.Errorf("converting %s: %w: %s", filepath.Base(src), err, strings.TrimSpace(string(out)))
	}
	ext := filter
	if i := strings.IndexByte(ext, ':'); i >= 0 {
		ext = ext[:i]
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	produced := filepath.Join(dir, stem+"."+ext)
	if _, err := os.Stat(produced); err != nil {
		return "", fmt.Errorf("converting %s: soffice reported no output: %s", filepath.Base(src), strings.TrimSpace(string(out)))
	}
	return produced, nil
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("opening %s: %w", p, err)
	}
	return abs, nil
}

// writer is the document application session.
type writer struct{ *session }

func (w *writer) Open(_ context.Context, path string) (backend.Document, error) {
	src, err := absPath(path)
	if err != nil {
		return nil, err
	}
	return &document{s: w.session, src: src}, nil
}

type document struct {
	s   *session
	src string
}

func (d *document) PageCount(context.Context) (int, error) {
	return docxPageCount(d.src)
}

func (d *document) ExportPDF(ctx context.Context, outPath string) error {
	dir, err := os.MkdirTemp(d.s.drv.root, "export-")
	if err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	defer os.RemoveAll(dir)

	produced, err := d.s.convert(ctx, d.src, filterWriterPDF, dir)
	if err != nil {
		return err
	}
	return moveFile(produced, outPath)
}

// Close is a no-op: soffice holds nothing open between conversions.
func (d *document) Close(context.Context) error { return nil }

// impress is the presentation application session.
type impress struct{ *session }

func (im *impress) Open(_ context.Context, path string) (backend.Presentation, error) {
	src, err := absPath(path)
	if err != nil {
		return nil, err
	}
	p := &presentation{s: im.session, src: src}

	pk, err := openPackage(src)
	switch {
	case err == nil:
		defer pk.Close()
		info, err := readDeckInfo(pk)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Base(src), err)
		}
		p.info = &info
	case errors.Is(err, errNotOOXML):
		// Legacy binary deck: geometry comes from the exported PDF.
	default:
		return nil, err
	}
	return p, nil
}

type presentation struct {
	s    *session
	src  string
	info *deckInfo

	dir   string // scratch directory holding the exported PDF
	pdf   string
	pages int
	doc   raster.Document
}

// ensurePDF exports the deck to PDF once per open presentation.
func (p *presentation) ensurePDF(ctx context.Context) error {
	if p.pdf != "" {
		return nil
	}
	dir, err := os.MkdirTemp(p.s.drv.root, "deck-")
	if err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	p.dir = dir
	produced, err := p.s.convert(ctx, p.src, filterImpressPDF, dir)
	if err != nil {
		return err
	}
	pages, err := p.s.drv.info.PageCount(produced)
	if err != nil {
		return fmt.Errorf("reading exported PDF: %w", err)
	}
	if p.info != nil && pages != len(p.info.slideParts) {
		return fmt.Errorf("exported PDF has %d pages for %d slides", pages, len(p.info.slideParts))
	}
	p.pdf, p.pages = produced, pages
	return nil
}

func (p *presentation) SlideCount(ctx context.Context) (int, error) {
	if p.info != nil {
		return len(p.info.slideParts), nil
	}
	if err := p.ensurePDF(ctx); err != nil {
		return 0, err
	}
	return p.pages, nil
}

func (p *presentation) SlideSize(ctx context.Context) (float64, float64, error) {
	if p.info != nil {
		return p.info.width, p.info.height, nil
	}
	if err := p.ensurePDF(ctx); err != nil {
		return 0, 0, err
	}
	return p.s.drv.info.PageSize(p.pdf)
}

func (p *presentation) ExportSlide(ctx context.Context, index int, outPath string, filter backend.ExportFilter, width, height int) error {
	format, err := imageFormat(filter)
	if err != nil {
		return err
	}
	if err := p.ensurePDF(ctx); err != nil {
		return err
	}
	if index < 1 || index > p.pages {
		return fmt.Errorf("slide %d out of range 1..%d", index, p.pages)
	}
	if p.doc == nil {
		doc, err := p.s.drv.open(p.pdf)
		if err != nil {
			return fmt.Errorf("opening exported PDF: %w", err)
		}
		p.doc = doc
	}

	pw, _, err := p.SlideSize(ctx)
	if err != nil {
		return err
	}
	dpi := 72.0
	if pw > 0 {
		dpi = 72.0 * float64(width) / pw
	}
	img, err := p.doc.ImageDPI(index-1, dpi)
	if err != nil {
		return fmt.Errorf("rendering slide %d: %w", index, err)
	}
	out := raster.Flatten(img)
	if b := out.Bounds(); b.Dx() != width || b.Dy() != height {
		out = raster.Resize(out, width, height)
	}
	return raster.WriteFile(outPath, out, format)
}

func (p *presentation) Shapes(_ context.Context, index int) ([]backend.Shape, error) {
	if p.info == nil {
		return nil, fmt.Errorf("%s: shape text requires an Office Open XML deck", filepath.Base(p.src))
	}
	if index < 1 || index > len(p.info.slideParts) {
		return nil, fmt.Errorf("slide %d out of range 1..%d", index, len(p.info.slideParts))
	}
	pk, err := openPackage(p.src)
	if err != nil {
		return nil, err
	}
	defer pk.Close()
	return readSlideShapes(pk, p.info.slideParts[index-1])
}

func (p *presentation) Close(context.Context) error {
	var errs []error
	if p.doc != nil {
		errs = append(errs, p.doc.Close())
		p.doc = nil
	}
	if p.dir != "" {
		errs = append(errs, os.RemoveAll(p.dir))
		p.dir = ""
	}
	return errors.Join(errs...)
}

func imageFormat(f backend.ExportFilter) (types.ImageFormat, error) {
	switch f {
	case backend.FilterPNG:
		return types.ImagePNG, nil
	case backend.FilterJPG:
		return types.ImageJPG, nil
	}
	return "", fmt.Errorf("%w: export filter %q", types.ErrUnsupportedFormat, f)
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return out.Close()
}
