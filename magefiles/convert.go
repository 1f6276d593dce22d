//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert builds the CLI and converts the documents in input/ to images in
// screenshots/. OFFICE2IMG_* environment variables apply as usual.
func Convert() error {
	mg.Deps(Init, Build)
	return sh.RunV(binary(), "convert", "--input", "input", "--output", "screenshots")
}

// Text collects the text of the presentations in input/ into
// screenshots/all_presentations.txt.
func Text() error {
	mg.Deps(Init, Build)
	return sh.RunV(binary(), "convert", "--mode", "text", "--input", "input", "--output", "screenshots")
}

// Probe checks that the configured backend can start both applications.
func Probe() error {
	mg.Deps(Build)
	args := []string{"probe"}
	if b := os.Getenv("BACKEND"); b != "" {
		args = append(args, "--backend", b)
	}
	return sh.RunV(binary(), args...)
}
