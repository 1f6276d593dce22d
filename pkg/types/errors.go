// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Error classes of the conversion pipeline. Callers wrap them with
// fmt.Errorf("...: %w", ...) and classify with errors.Is.
var (
	// ErrSourceNotFound: the input file vanished. The item is skipped.
	ErrSourceNotFound = errors.New("source not found")

	// ErrUnsupportedFormat: the extension has no converter in this mode.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrBackendUnavailable: a required backend failed preflight. Fatal.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendTimeout: a backend call exceeded its bounded wait. Fatal.
	ErrBackendTimeout = errors.New("backend timeout")

	// ErrConversion: one document could not be converted.
	ErrConversion = errors.New("conversion failed")

	// ErrPageExport: one page or slide could not be exported.
	ErrPageExport = errors.New("page export failed")

	// ErrCleanup: releasing a resource failed. Logged at debug level only.
	ErrCleanup = errors.New("cleanup failed")

	// ErrNoInputFiles: discovery found nothing to process.
	ErrNoInputFiles = errors.New("no input files found")
)
