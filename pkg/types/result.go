// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionStatus indicates the outcome of processing one document.
type ConversionStatus string

const (
	ConversionNone    ConversionStatus = "none"
	ConversionDone    ConversionStatus = "converted"
	ConversionPartial ConversionStatus = "partial"
	ConversionFailed  ConversionStatus = "failed"
	ConversionSkipped ConversionStatus = "skipped"
)

// FileResult records what happened to one document in a batch.
type FileResult struct {
	Name   string           `json:"name" yaml:"name"`
	Format Format           `json:"format" yaml:"format"`
	Status ConversionStatus `json:"status" yaml:"status"`

	// Pages is the number of pages or slides written (or transcribed).
	Pages int `json:"pages" yaml:"pages"`

	// FailedPages lists 1-based slide indexes whose export failed.
	FailedPages []int `json:"failed_pages,omitempty" yaml:"failed_pages,omitempty"`

	// Error is the failure message, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// BatchStatus is the terminal state of a batch.
type BatchStatus string

const (
	BatchCompleted BatchStatus = "completed"
	BatchNoInput   BatchStatus = "no_input"
	BatchAborted   BatchStatus = "aborted"
	BatchTimedOut  BatchStatus = "timed_out"
)

// BatchResult holds the outcome of a batch run.
type BatchResult struct {
	Status     BatchStatus  `json:"status" yaml:"status"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	Files      []FileResult `json:"files" yaml:"files"`

	// Artifact is the transcript path in text mode.
	Artifact string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
}

// Add appends a file outcome.
func (r *BatchResult) Add(f FileResult) {
	r.Files = append(r.Files, f)
}

// Count returns the number of files with the given status.
func (r BatchResult) Count(s ConversionStatus) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == s {
			n++
		}
	}
	return n
}

// Total returns the number of files processed.
func (r BatchResult) Total() int {
	return len(r.Files)
}

// HasFailures reports whether any document failed or was only partly converted.
func (r BatchResult) HasFailures() bool {
	return r.Count(ConversionFailed) > 0 || r.Count(ConversionPartial) > 0
}
