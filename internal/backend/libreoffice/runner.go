// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package libreoffice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/pdiddy/office2img/internal/container"
)

// Runner executes soffice with the given arguments. mounts lists the host
// directories the command reads or writes; the session profile is last.
type Runner interface {
	// Name describes where soffice runs, for logs.
	Name() string
	// Check reports whether soffice can be launched at all.
	Check(ctx context.Context) error
	// Run executes soffice and returns its combined output.
	Run(ctx context.Context, args []string, mounts []string) ([]byte, error)
}

// LocalRunner runs a soffice binary from the host.
type LocalRunner struct {
	Bin string
}

func (r *LocalRunner) Name() string { return r.Bin }

func (r *LocalRunner) Check(context.Context) error {
	if _, err := exec.LookPath(r.Bin); err != nil {
		return fmt.Errorf("LibreOffice binary %s not found: %w", r.Bin, err)
	}
	return nil
}

func (r *LocalRunner) Run(ctx context.Context, args []string, _ []string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, r.Bin, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("running %s: %w", r.Bin, err)
	}
	return out, nil
}

// ContainerRunner runs soffice inside a container image. The container
// has no network and, on Unix hosts, runs as the calling user so rendered
// files and the profile stay writable from the host.
//
// When Runtime is nil it is resolved with Detect on first use, so building
// the runner never touches docker or podman.
type ContainerRunner struct {
	Runtime container.Runtime
	Detect  func(ctx context.Context) (container.Runtime, error)
	Image   string
	Bin     string
}

func (r *ContainerRunner) Name() string {
	rt := "container"
	if r.Runtime != nil {
		rt = r.Runtime.Name()
	}
	return fmt.Sprintf("%s in %s (%s)", r.Bin, r.Image, rt)
}

func (r *ContainerRunner) runtime(ctx context.Context) (container.Runtime, error) {
	if r.Runtime != nil {
		return r.Runtime, nil
	}
	if r.Detect == nil {
		return nil, errors.New("no container runtime configured")
	}
	rt, err := r.Detect(ctx)
	if err != nil {
		return nil, err
	}
	r.Runtime = rt
	return rt, nil
}

func (r *ContainerRunner) Check(ctx context.Context) error {
	rt, err := r.runtime(ctx)
	if err != nil {
		return err
	}
	return rt.ImageExists(ctx, r.Image)
}

func (r *ContainerRunner) Run(ctx context.Context, args []string, mounts []string) ([]byte, error) {
	spec := container.RunSpec{
		Image:   r.Image,
		Mounts:  mounts,
		Offline: true,
		Args:    append([]string{r.Bin}, args...),
	}
	if uid, gid := os.Getuid(), os.Getgid(); uid >= 0 {
		spec.User = fmt.Sprintf("%d:%d", uid, gid)
	}
	if len(mounts) > 0 {
		// soffice writes under $HOME even with a private profile.
		spec.Env = []string{"HOME=" + mounts[len(mounts)-1]}
	}
	rt, err := r.runtime(ctx)
	if err != nil {
		return nil, err
	}
	return rt.Run(ctx, spec)
}
