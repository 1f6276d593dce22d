// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package raster

import (
	"github.com/gen2brain/go-fitz"
)

// OpenFitz opens path with MuPDF. Rendering requires cgo.
func OpenFitz(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
