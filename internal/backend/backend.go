// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend manages the external authoring applications that convert
// formats the native rasterizer cannot read. A Driver speaks to one backend
// family (COM Office, LibreOffice); the Manager owns the sessions of a batch.
package backend

import (
	"context"
	"fmt"
)

// AppType names an external application role.
type AppType string

const (
	// DocumentApp opens paginated word-processing documents.
	DocumentApp AppType = "document"
	// PresentationApp opens slide decks.
	PresentationApp AppType = "presentation"
)

// ParseAppType converts a CLI argument to an AppType.
func ParseAppType(s string) (AppType, error) {
	switch AppType(s) {
	case DocumentApp, PresentationApp:
		return AppType(s), nil
	default:
		return "", fmt.Errorf("unknown application type %q: use document or presentation", s)
	}
}

// Session is one live backend instance.
type Session interface {
	// Quit stops the instance.
	Quit(ctx context.Context) error
}

// Documents is a running document-authoring application.
type Documents interface {
	Session
	// Open opens path read-only.
	Open(ctx context.Context, path string) (Document, error)
}

// Document is an open word-processing document.
type Document interface {
	// PageCount returns the document's page-count statistic.
	PageCount(ctx context.Context) (int, error)
	// ExportPDF writes the whole document as PDF to outPath.
	ExportPDF(ctx context.Context, outPath string) error
	// Close closes the document without saving changes.
	Close(ctx context.Context) error
}

// Presentations is a running presentation-authoring application.
type Presentations interface {
	Session
	// Open opens path read-only without a window.
	Open(ctx context.Context, path string) (Presentation, error)
}

// Presentation is an open slide deck. Slide indexes are 1-based.
type Presentation interface {
	// SlideCount returns the number of slides.
	SlideCount(ctx context.Context) (int, error)
	// SlideSize returns the native slide size in points.
	SlideSize(ctx context.Context) (width, height float64, err error)
	// ExportSlide writes one slide as an image of width x height pixels.
	ExportSlide(ctx context.Context, index int, outPath string, filter ExportFilter, width, height int) error
	// Shapes returns the shapes of one slide in z-order.
	Shapes(ctx context.Context, index int) ([]Shape, error)
	// Close closes the presentation.
	Close(ctx context.Context) error
}

// Shape is one element on a slide.
type Shape interface {
	// Text returns the shape's text content and whether the shape has a
	// text capability at all.
	Text() (string, bool)
}

// TextShape is a Shape with fixed content. An empty HasText marks a shape
// without text capability (pictures, connectors).
type TextShape struct {
	Content string
	HasText bool
}

// Text implements Shape.
func (s TextShape) Text() (string, bool) { return s.Content, s.HasText }

// ExportFilter is the raster type requested from a backend slide export.
type ExportFilter string

const (
	FilterPNG ExportFilter = "PNG"
	FilterJPG ExportFilter = "JPG"
)

// Driver starts sessions for one backend family.
type Driver interface {
	// Name identifies the driver in logs.
	Name() string
	// Init prepares process-wide state. It is called once before the first
	// session and paired with one Uninit.
	Init() error
	// Uninit releases process-wide state.
	Uninit()
	// Start launches a hidden instance with alerts suppressed.
	Start(ctx context.Context, app AppType) (Session, error)
}
