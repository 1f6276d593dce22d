// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backendtest provides an in-memory backend driver for tests.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/office2img/internal/backend"
)

// Driver is a scripted backend.Driver. Documents and decks are looked up
// by base file name.
type Driver struct {
	InitErr  error
	StartErr map[backend.AppType]error
	QuitErr  error

	Documents map[string]*Doc
	Decks     map[string]*Deck

	Inits   int
	Uninits int
	Starts  map[backend.AppType]int
	Quits   map[backend.AppType]int
}

// NewDriver returns an empty Driver.
func NewDriver() *Driver {
	return &Driver{
		StartErr:  map[backend.AppType]error{},
		Documents: map[string]*Doc{},
		Decks:     map[string]*Deck{},
		Starts:    map[backend.AppType]int{},
		Quits:     map[backend.AppType]int{},
	}
}

// Doc scripts one word-processing document.
type Doc struct {
	Pages        int
	PageCountErr error
	// ExportErr fails ExportPDF after PartialPDF (if set) was written.
	ExportErr  error
	PartialPDF bool
	Delay      time.Duration

	Opens  int
	Closes int
}

// Deck scripts one presentation.
type Deck struct {
	Width, Height float64
	Slides        []Slide
	OpenErr       error
	ShapesErr     error

	Opens   int
	Closes  int
	Exports []Export
}

// Slide scripts one slide.
type Slide struct {
	Shapes    []backend.Shape
	ExportErr error
	Delay     time.Duration
}

// Export records one ExportSlide call.
type Export struct {
	Index         int
	Path          string
	Filter        backend.ExportFilter
	Width, Height int
}

func (d *Driver) Name() string { return "fake" }

func (d *Driver) Init() error {
	if d.InitErr != nil {
		return d.InitErr
	}
	d.Inits++
	return nil
}

func (d *Driver) Uninit() { d.Uninits++ }

func (d *Driver) Start(_ context.Context, app backend.AppType) (backend.Session, error) {
	if err := d.StartErr[app]; err != nil {
		return nil, err
	}
	d.Starts[app]++
	switch app {
	case backend.DocumentApp:
		return &docApp{d: d}, nil
	case backend.PresentationApp:
		return &deckApp{d: d}, nil
	}
	return nil, fmt.Errorf("unknown app %q", app)
}

type docApp struct{ d *Driver }

func (a *docApp) Quit(context.Context) error {
	a.d.Quits[backend.DocumentApp]++
	return a.d.QuitErr
}

func (a *docApp) Open(_ context.Context, path string) (backend.Document, error) {
	doc, ok := a.d.Documents[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("document %s could not be opened", path)
	}
	doc.Opens++
	return &openDoc{doc: doc}, nil
}

type openDoc struct{ doc *Doc }

func (o *openDoc) PageCount(context.Context) (int, error) {
	return o.doc.Pages, o.doc.PageCountErr
}

func (o *openDoc) ExportPDF(ctx context.Context, outPath string) error {
	if err := wait(ctx, o.doc.Delay); err != nil {
		return err
	}
	if o.doc.ExportErr != nil {
		if o.doc.PartialPDF {
			_ = os.WriteFile(outPath, []byte("%PDF-1.7 partial"), 0o644)
		}
		return o.doc.ExportErr
	}
	return os.WriteFile(outPath, []byte("%PDF-1.7 exported"), 0o644)
}

func (o *openDoc) Close(context.Context) error {
	o.doc.Closes++
	return nil
}

type deckApp struct{ d *Driver }

func (a *deckApp) Quit(context.Context) error {
	a.d.Quits[backend.PresentationApp]++
	return a.d.QuitErr
}

func (a *deckApp) Open(_ context.Context, path string) (backend.Presentation, error) {
	deck, ok := a.d.Decks[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("presentation %s could not be opened", path)
	}
	if deck.OpenErr != nil {
		return nil, deck.OpenErr
	}
	deck.Opens++
	return &openDeck{deck: deck}, nil
}

type openDeck struct{ deck *Deck }

func (o *openDeck) SlideCount(context.Context) (int, error) {
	return len(o.deck.Slides), nil
}

func (o *openDeck) SlideSize(context.Context) (float64, float64, error) {
	return o.deck.Width, o.deck.Height, nil
}

func (o *openDeck) slide(index int) (*Slide, error) {
	if index < 1 || index > len(o.deck.Slides) {
		return nil, errors.New("slide index out of range")
	}
	return &o.deck.Slides[index-1], nil
}

func (o *openDeck) ExportSlide(ctx context.Context, index int, outPath string, filter backend.ExportFilter, width, height int) error {
	s, err := o.slide(index)
	if err != nil {
		return err
	}
	if err := wait(ctx, s.Delay); err != nil {
		return err
	}
	o.deck.Exports = append(o.deck.Exports, Export{Index: index, Path: outPath, Filter: filter, Width: width, Height: height})
	if s.ExportErr != nil {
		return s.ExportErr
	}
	return os.WriteFile(outPath, []byte(fmt.Sprintf("%s %dx%d", filter, width, height)), 0o644)
}

func (o *openDeck) Shapes(_ context.Context, index int) ([]backend.Shape, error) {
	if o.deck.ShapesErr != nil {
		return nil, o.deck.ShapesErr
	}
	s, err := o.slide(index)
	if err != nil {
		return nil, err
	}
	return s.Shapes, nil
}

func (o *openDeck) Close(context.Context) error {
	o.deck.Closes++
	return nil
}

// Text returns a shape carrying text.
func Text(s string) backend.Shape {
	return backend.TextShape{Content: s, HasText: true}
}

// Picture returns a shape without text capability.
func Picture() backend.Shape {
	return backend.TextShape{}
}

// wait simulates a slow backend call that gives up when ctx ends.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
