// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress holds the markers of the user-facing progress log.
// They are colorized when the output is a terminal.
package progress

import "github.com/fatih/color"

var (
	file    = color.New(color.FgCyan, color.Bold).SprintFunc()
	ok      = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
	done    = color.New(color.FgGreen, color.Bold).SprintFunc()
)

func File() string    { return file("[FILE]") }
func OK() string      { return ok("[OK]") }
func Warning() string { return warning("[WARNING]") }
func Error() string   { return failure("[ERROR]") }
func Done() string    { return done("[DONE]") }
