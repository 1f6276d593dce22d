// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"strings"
)

// Format identifies the kind of source document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
)

// extensionFormats maps lower-case file extensions to formats. Legacy
// binary .doc and .ppt go through the same backends as their XML successors.
var extensionFormats = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".doc":  FormatDOCX,
	".pptx": FormatPPTX,
	".ppt":  FormatPPTX,
}

// FormatForPath returns the format for a file name by its extension,
// compared case-insensitively.
func FormatForPath(path string) (Format, bool) {
	f, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// SupportedExtensions returns the extensions accepted in the given mode.
func SupportedExtensions(mode Mode) []string {
	if mode == ModeText {
		return []string{".pptx", ".ppt"}
	}
	return []string{".pdf", ".docx", ".doc", ".pptx", ".ppt"}
}

// SupportsFormat reports whether mode can process documents of format f.
func SupportsFormat(mode Mode, f Format) bool {
	if mode == ModeText {
		return f == FormatPPTX
	}
	return f == FormatPDF || f == FormatDOCX || f == FormatPPTX
}

// SourceDocument is a discovered input file. It is not modified after
// discovery.
type SourceDocument struct {
	// Path is the file path as discovered.
	Path string `json:"path" yaml:"path"`

	// Name is the base file name including extension (e.g. "deck.pptx").
	Name string `json:"name" yaml:"name"`

	// Stem is the base name without extension; it names the output directory.
	Stem string `json:"stem" yaml:"stem"`

	// Format is derived from the extension.
	Format Format `json:"format" yaml:"format"`
}

// NewSourceDocument builds a SourceDocument for path. The boolean is false
// when the extension is not a supported format.
func NewSourceDocument(path string) (SourceDocument, bool) {
	f, ok := FormatForPath(path)
	if !ok {
		return SourceDocument{}, false
	}
	name := filepath.Base(path)
	return SourceDocument{
		Path:   path,
		Name:   name,
		Stem:   strings.TrimSuffix(name, filepath.Ext(name)),
		Format: f,
	}, true
}

// ConversionJob is one document scheduled for processing.
type ConversionJob struct {
	Document  SourceDocument
	Mode      Mode
	OutputDir string
}

// NewConversionJob places the job's output under base/<stem>.
func NewConversionJob(doc SourceDocument, mode Mode, base string) ConversionJob {
	return ConversionJob{
		Document:  doc,
		Mode:      mode,
		OutputDir: filepath.Join(base, doc.Stem),
	}
}
