// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs one-shot commands inside docker or podman. The
// libreoffice driver uses it to run soffice from an image when the host has
// no local LibreOffice installation.
package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoRuntime is returned by DetectRuntime when neither docker nor podman
// answers.
var ErrNoRuntime = errors.New("no container runtime available")

// Runtime is a container CLI that can check for an image and run a
// throwaway container from it.
type Runtime interface {
	// Name returns the runtime binary ("docker" or "podman").
	Name() string

	// ImageExists returns nil when image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run starts a container described by spec, waits for it to exit and
	// returns its combined output.
	Run(ctx context.Context, spec RunSpec) ([]byte, error)
}

// RunSpec describes a single container invocation.
type RunSpec struct {
	Image string
	// Mounts are host directories bound at the same path inside the
	// container. The first one is the working directory.
	Mounts []string
	// User is passed as --user when set, typically "uid:gid" so files
	// written to the mounts belong to the caller.
	User string
	// Env entries are KEY=VALUE pairs.
	Env []string
	// Offline disables networking for the container.
	Offline bool
	Args    []string
}

// runArgs renders spec as arguments to "<runtime> run".
func (s RunSpec) runArgs() []string {
	args := []string{"run", "--rm"}
	if s.Offline {
		args = append(args, "--network", "none")
	}
	if s.User != "" {
		args = append(args, "--user", s.User)
	}
	for _, e := range s.Env {
		args = append(args, "-e", e)
	}
	seen := make(map[string]bool, len(s.Mounts))
	for _, m := range s.Mounts {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		args = append(args, "-v", m+":"+m)
	}
	if len(s.Mounts) > 0 && s.Mounts[0] != "" {
		args = append(args, "-w", s.Mounts[0])
	}
	args = append(args, s.Image)
	return append(args, s.Args...)
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// cli implements Runtime for docker and podman, which differ only in the
// binary and the image check subcommand.
type cli struct {
	bin        string
	imageCheck []string
	exec       executor
}

var runtimes = []cli{
	{bin: "docker", imageCheck: []string{"image", "inspect"}},
	{bin: "podman", imageCheck: []string{"image", "exists"}},
}

func (c *cli) Name() string { return c.bin }

func (c *cli) available(ctx context.Context) bool {
	if _, err := c.exec.LookPath(c.bin); err != nil {
		return false
	}
	_, err := c.exec.Output(ctx, c.bin, "info")
	return err == nil
}

func (c *cli) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string{}, c.imageCheck...), image)
	if _, err := c.exec.Output(ctx, c.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, c.bin, err)
	}
	return nil
}

func (c *cli) Run(ctx context.Context, spec RunSpec) ([]byte, error) {
	if spec.Image == "" {
		return nil, errors.New("container image not set")
	}
	out, err := c.exec.Output(ctx, c.bin, spec.runArgs()...)
	if err != nil {
		return out, fmt.Errorf("running %s container %s: %w", c.bin, spec.Image, err)
	}
	return out, nil
}

// DetectRuntime returns docker when it answers, otherwise podman.
func DetectRuntime(ctx context.Context) (Runtime, error) {
	return detectRuntime(ctx, osExecutor{})
}

func detectRuntime(ctx context.Context, exec executor) (Runtime, error) {
	names := make([]string, 0, len(runtimes))
	for _, r := range runtimes {
		c := r
		c.exec = exec
		if c.available(ctx) {
			return &c, nil
		}
		names = append(names, c.bin)
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoRuntime, strings.Join(names, ", "))
}
