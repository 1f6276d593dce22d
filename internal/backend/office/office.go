// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package office drives Microsoft Word and PowerPoint through COM
// automation. It is only functional on Windows with Office installed;
// elsewhere Init fails and the backend reports as unavailable.
package office

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/office2img/internal/backend"
)

const (
	progWord       = "Word.Application"
	progPowerPoint = "PowerPoint.Application"

	wdDoNotSaveChanges    = 0
	wdStatisticPages      = 2
	wdExportFormatPDF     = 17
	wdAlertsNone          = 0
	ppAlertsNone          = 1
	msoTrue               = -1
	msoFalse              = 0
	hresultAlreadyStarted = 1 // S_FALSE from CoInitializeEx
)

// Driver implements backend.Driver over COM.
type Driver struct {
	log *logrus.Logger
	apt *apartment
}

// New returns a COM driver.
func New(log *logrus.Logger) *Driver {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Driver{log: log}
}

func (d *Driver) Name() string { return "office" }

// Init starts the single-threaded apartment every COM call runs in.
func (d *Driver) Init() error {
	apt, err := startApartment(comInit, ole.CoUninitialize)
	if err != nil {
		return fmt.Errorf("initializing COM: %w", err)
	}
	d.apt = apt
	return nil
}

func comInit() error {
	err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED)
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) && oleErr.Code() == hresultAlreadyStarted {
		return nil
	}
	return err
}

// Uninit stops the apartment and uninitializes COM on its thread.
func (d *Driver) Uninit() {
	if d.apt == nil {
		return
	}
	if !d.apt.stop() {
		d.log.Debug("COM apartment still busy at shutdown; leaving it to process exit")
	}
	d.apt = nil
}

// Start launches a hidden Word or PowerPoint instance with alerts off.
func (d *Driver) Start(ctx context.Context, app backend.AppType) (backend.Session, error) {
	if d.apt == nil {
		return nil, errors.New("office driver not initialized")
	}
	switch app {
	case backend.DocumentApp:
		disp, err := d.launch(ctx, progWord, map[string]any{
			"Visible":       false,
			"DisplayAlerts": wdAlertsNone,
		})
		if err != nil {
			return nil, err
		}
		return &word{obj{d.apt, disp}}, nil
	case backend.PresentationApp:
		// PowerPoint refuses Visible=false on the application; windows are
		// suppressed per presentation instead.
		disp, err := d.launch(ctx, progPowerPoint, map[string]any{
			"DisplayAlerts": ppAlertsNone,
		})
		if err != nil {
			return nil, err
		}
		return &powerPoint{obj{d.apt, disp}}, nil
	}
	return nil, fmt.Errorf("unknown application type %q", app)
}

func (d *Driver) launch(ctx context.Context, progID string, props map[string]any) (*ole.IDispatch, error) {
	var disp *ole.IDispatch
	err := d.apt.do(ctx, func() error {
		unknown, err := oleutil.CreateObject(progID)
		if err != nil {
			return fmt.Errorf("creating %s: %w", progID, err)
		}
		defer unknown.Release()
		disp, err = unknown.QueryInterface(ole.IID_IDispatch)
		if err != nil {
			return fmt.Errorf("querying %s: %w", progID, err)
		}
		for name, v := range props {
			if _, err := oleutil.PutProperty(disp, name, v); err != nil {
				d.log.WithError(err).WithField("property", name).Debug("setting application property failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.log.WithField("prog_id", progID).Debug("COM application launched")
	return disp, nil
}

// obj is a COM dispatch object bound to the apartment that owns it.
type obj struct {
	apt  *apartment
	disp *ole.IDispatch
}

func (o obj) call(ctx context.Context, fn func() error) error {
	return o.apt.do(ctx, fn)
}

func (o obj) quit(ctx context.Context, args ...any) error {
	return o.call(ctx, func() error {
		defer o.disp.Release()
		_, err := oleutil.CallMethod(o.disp, "Quit", args...)
		return err
	})
}

// child returns the dispatch object held by a property or method result.
func child(v *ole.VARIANT, err error) (*ole.IDispatch, error) {
	if err != nil {
		return nil, err
	}
	d := v.ToIDispatch()
	if d == nil {
		return nil, errors.New("COM call returned no object")
	}
	return d, nil
}

func intValue(v *ole.VARIANT, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	defer v.Clear()
	return toInt(v.Value())
}

func floatValue(v *ole.VARIANT, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	defer v.Clear()
	return toFloat(v.Value())
}

// word is a running Word instance.
type word struct{ obj }

func (w *word) Quit(ctx context.Context) error {
	return w.quit(ctx, wdDoNotSaveChanges)
}

func (w *word) Open(ctx context.Context, path string) (backend.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	var doc *ole.IDispatch
	err = w.call(ctx, func() error {
		docs, err := child(oleutil.GetProperty(w.disp, "Documents"))
		if err != nil {
			return err
		}
		defer docs.Release()
		// FileName, ConfirmConversions, ReadOnly
		doc, err = child(oleutil.CallMethod(docs, "Open", abs, false, true))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s in Word: %w", filepath.Base(path), err)
	}
	return &wordDocument{obj{w.apt, doc}}, nil
}

type wordDocument struct{ obj }

func (d *wordDocument) PageCount(ctx context.Context) (int, error) {
	var n int
	err := d.call(ctx, func() error {
		var err error
		n, err = intValue(oleutil.CallMethod(d.disp, "ComputeStatistics", wdStatisticPages))
		return err
	})
	return n, err
}

func (d *wordDocument) ExportPDF(ctx context.Context, outPath string) error {
	abs, err := filepath.Abs(outPath)
	if err != nil {
		return err
	}
	return d.call(ctx, func() error {
		_, err := oleutil.CallMethod(d.disp, "ExportAsFixedFormat", abs, wdExportFormatPDF)
		return err
	})
}

func (d *wordDocument) Close(ctx context.Context) error {
	return d.call(ctx, func() error {
		defer d.disp.Release()
		_, err := oleutil.CallMethod(d.disp, "Close", wdDoNotSaveChanges)
		return err
	})
}

// powerPoint is a running PowerPoint instance.
type powerPoint struct{ obj }

func (p *powerPoint) Quit(ctx context.Context) error {
	return p.quit(ctx)
}

func (p *powerPoint) Open(ctx context.Context, path string) (backend.Presentation, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	var pres *ole.IDispatch
	err = p.call(ctx, func() error {
		all, err := child(oleutil.GetProperty(p.disp, "Presentations"))
		if err != nil {
			return err
		}
		defer all.Release()
		// FileName, ReadOnly, Untitled, WithWindow
		pres, err = child(oleutil.CallMethod(all, "Open", abs, msoTrue, msoFalse, msoFalse))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s in PowerPoint: %w", filepath.Base(path), err)
	}
	return &deck{obj{p.apt, pres}}, nil
}

type deck struct{ obj }

func (d *deck) SlideCount(ctx context.Context) (int, error) {
	var n int
	err := d.call(ctx, func() error {
		slides, err := child(oleutil.GetProperty(d.disp, "Slides"))
		if err != nil {
			return err
		}
		defer slides.Release()
		n, err = intValue(oleutil.GetProperty(slides, "Count"))
		return err
	})
	return n, err
}

func (d *deck) SlideSize(ctx context.Context) (float64, float64, error) {
	var w, h float64
	err := d.call(ctx, func() error {
		setup, err := child(oleutil.GetProperty(d.disp, "PageSetup"))
		if err != nil {
			return err
		}
		defer setup.Release()
		if w, err = floatValue(oleutil.GetProperty(setup, "SlideWidth")); err != nil {
			return err
		}
		h, err = floatValue(oleutil.GetProperty(setup, "SlideHeight"))
		return err
	})
	return w, h, err
}

// slide runs fn with slide index of the deck.
func (d *deck) slide(index int, fn func(*ole.IDispatch) error) error {
	slides, err := child(oleutil.GetProperty(d.disp, "Slides"))
	if err != nil {
		return err
	}
	defer slides.Release()
	s, err := child(oleutil.CallMethod(slides, "Item", index))
	if err != nil {
		return fmt.Errorf("slide %d: %w", index, err)
	}
	defer s.Release()
	return fn(s)
}

func (d *deck) ExportSlide(ctx context.Context, index int, outPath string, filter backend.ExportFilter, width, height int) error {
	abs, err := filepath.Abs(outPath)
	if err != nil {
		return err
	}
	return d.call(ctx, func() error {
		return d.slide(index, func(s *ole.IDispatch) error {
			_, err := oleutil.CallMethod(s, "Export", abs, string(filter), width, height)
			return err
		})
	})
}

// Shapes snapshots every shape's text while on the apartment thread, so the
// returned values carry no COM references.
func (d *deck) Shapes(ctx context.Context, index int) ([]backend.Shape, error) {
	var out []backend.Shape
	err := d.call(ctx, func() error {
		return d.slide(index, func(s *ole.IDispatch) error {
			shapes, err := child(oleutil.GetProperty(s, "Shapes"))
			if err != nil {
				return err
			}
			defer shapes.Release()
			n, err := intValue(oleutil.GetProperty(shapes, "Count"))
			if err != nil {
				return err
			}
			for i := 1; i <= n; i++ {
				sh, err := shapeText(shapes, i)
				if err != nil {
					return fmt.Errorf("shape %d: %w", i, err)
				}
				out = append(out, sh)
			}
			return nil
		})
	})
	return out, err
}

func shapeText(shapes *ole.IDispatch, i int) (backend.TextShape, error) {
	sh, err := child(oleutil.CallMethod(shapes, "Item", i))
	if err != nil {
		return backend.TextShape{}, err
	}
	defer sh.Release()

	has, err := intValue(oleutil.GetProperty(sh, "HasTextFrame"))
	if err != nil || has != msoTrue {
		// Shapes that cannot report a text frame have no text capability.
		return backend.TextShape{}, nil
	}
	frame, err := child(oleutil.GetProperty(sh, "TextFrame"))
	if err != nil {
		return backend.TextShape{}, err
	}
	defer frame.Release()
	rng, err := child(oleutil.GetProperty(frame, "TextRange"))
	if err != nil {
		return backend.TextShape{}, err
	}
	defer rng.Release()
	v, err := oleutil.GetProperty(rng, "Text")
	if err != nil {
		return backend.TextShape{}, err
	}
	defer v.Clear()
	return backend.TextShape{Content: normalizeText(v.ToString()), HasText: true}, nil
}

func (d *deck) Close(ctx context.Context) error {
	return d.call(ctx, func() error {
		defer d.disp.Release()
		_, err := oleutil.CallMethod(d.disp, "Close")
		return err
	})
}

// normalizeText converts PowerPoint's paragraph (CR) and line (VT) breaks
// to newlines.
func normalizeText(s string) string {
	return strings.NewReplacer("\r\n", "\n", "\r", "\n", "\v", "\n").Replace(s)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float32:
		return int(n), nil
	case float64:
		return int(n), nil
	case bool:
		if n {
			return msoTrue, nil
		}
		return msoFalse, nil
	}
	return 0, fmt.Errorf("unexpected COM value %v (%T), want integer", v, v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	}
	i, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("unexpected COM value %v (%T), want number", v, v)
	}
	return float64(i), nil
}
