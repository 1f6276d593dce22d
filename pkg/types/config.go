// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Mode selects what a batch produces.
type Mode string

const (
	// ModeImages renders every page or slide to an image file.
	ModeImages Mode = "images"
	// ModeText extracts presentation text into a single transcript.
	ModeText Mode = "text"
)

// ImageFormat is the raster file format written in image mode.
type ImageFormat string

const (
	ImagePNG ImageFormat = "png"
	ImageJPG ImageFormat = "jpg"
)

// BackendKind selects the driver used for DOCX and PPTX documents.
type BackendKind string

const (
	// BackendAuto picks office on Windows and libreoffice elsewhere.
	BackendAuto        BackendKind = "auto"
	BackendOffice      BackendKind = "office"
	BackendLibreOffice BackendKind = "libreoffice"
)

const (
	DefaultDPI            = 200
	DefaultOutputDir      = "screenshots"
	DefaultInputDir       = "."
	DefaultBackendTimeout = 10 * time.Minute
	DefaultSofficePath    = "soffice"

	maxDPI = 1200
)

// Config holds the settings of one conversion batch. It is built once by
// the CLI and passed down explicitly.
type Config struct {
	// DPI drives the render scale dpi/72 applied to native page units.
	DPI int `json:"dpi" yaml:"dpi"`

	// ImageFormat is png or jpg.
	ImageFormat ImageFormat `json:"image_format" yaml:"image_format"`

	// OutputDir is the base directory; each document gets OutputDir/<stem>.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// InputDir is scanned (non-recursively) for source documents.
	InputDir string `json:"input_dir" yaml:"input_dir"`

	// Mode is images or text.
	Mode Mode `json:"mode" yaml:"mode"`

	// Backend selects the DOCX/PPTX driver.
	Backend BackendKind `json:"backend" yaml:"backend"`

	// BackendTimeout bounds every call into a backend. Zero disables the bound.
	BackendTimeout time.Duration `json:"backend_timeout" yaml:"backend_timeout"`

	// SofficePath is the LibreOffice binary used by the libreoffice driver.
	SofficePath string `json:"soffice_path" yaml:"soffice_path"`

	// SofficeImage, when set, runs soffice inside this container image.
	SofficeImage string `json:"soffice_image,omitempty" yaml:"soffice_image,omitempty"`

	// HistoryDB is the SQLite run ledger path. Empty disables recording.
	HistoryDB string `json:"history_db,omitempty" yaml:"history_db,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		DPI:            DefaultDPI,
		ImageFormat:    ImagePNG,
		OutputDir:      DefaultOutputDir,
		InputDir:       DefaultInputDir,
		Mode:           ModeImages,
		Backend:        BackendAuto,
		BackendTimeout: DefaultBackendTimeout,
		SofficePath:    DefaultSofficePath,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.DPI <= 0 || c.DPI > maxDPI {
		return fmt.Errorf("dpi must be between 1 and %d, got %d", maxDPI, c.DPI)
	}
	switch c.ImageFormat {
	case ImagePNG, ImageJPG:
	default:
		return fmt.Errorf("unsupported image format %q: use png or jpg", c.ImageFormat)
	}
	switch c.Mode {
	case ModeImages, ModeText:
	default:
		return fmt.Errorf("unsupported mode %q: use images or text", c.Mode)
	}
	switch c.Backend {
	case BackendAuto, BackendOffice, BackendLibreOffice:
	default:
		return fmt.Errorf("unsupported backend %q: use auto, office, or libreoffice", c.Backend)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if c.BackendTimeout < 0 {
		return fmt.Errorf("backend timeout must not be negative, got %v", c.BackendTimeout)
	}
	return nil
}
