// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedExec answers LookPath from bins and Output from ok, keyed by the
// full command line. Every Output call is recorded.
type scriptedExec struct {
	bins  map[string]bool
	ok    map[string]bool
	out   []byte
	calls []string
}

func (s *scriptedExec) LookPath(file string) (string, error) {
	if s.bins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (s *scriptedExec) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	s.calls = append(s.calls, line)
	if s.ok[line] || s.ok[name+" *"] {
		return s.out, nil
	}
	return []byte("boom"), errors.New("exit status 1")
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name string
		exec *scriptedExec
		want string
	}{
		{
			name: "docker first",
			exec: &scriptedExec{
				bins: map[string]bool{"docker": true, "podman": true},
				ok:   map[string]bool{"docker info": true, "podman info": true},
			},
			want: "docker",
		},
		{
			name: "podman when docker is missing",
			exec: &scriptedExec{
				bins: map[string]bool{"podman": true},
				ok:   map[string]bool{"podman info": true},
			},
			want: "podman",
		},
		{
			name: "podman when the docker daemon is down",
			exec: &scriptedExec{
				bins: map[string]bool{"docker": true, "podman": true},
				ok:   map[string]bool{"podman info": true},
			},
			want: "podman",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rt.Name())
		})
	}
}

func TestDetectRuntime_None(t *testing.T) {
	_, err := detectRuntime(context.Background(), &scriptedExec{bins: map[string]bool{"docker": true}})
	require.ErrorIs(t, err, ErrNoRuntime)
	assert.Contains(t, err.Error(), "docker, podman")
}

func TestImageExists(t *testing.T) {
	exec := &scriptedExec{ok: map[string]bool{
		"docker image inspect lo:7": true,
		"podman image exists lo:7":  true,
	}}
	docker := &cli{bin: "docker", imageCheck: []string{"image", "inspect"}, exec: exec}
	podman := &cli{bin: "podman", imageCheck: []string{"image", "exists"}, exec: exec}

	assert.NoError(t, docker.ImageExists(context.Background(), "lo:7"))
	assert.NoError(t, podman.ImageExists(context.Background(), "lo:7"))

	err := docker.ImageExists(context.Background(), "lo:8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image lo:8 not found in docker")
}

func TestRun(t *testing.T) {
	exec := &scriptedExec{ok: map[string]bool{"podman *": true}, out: []byte("convert ok")}
	c := &cli{bin: "podman", exec: exec}

	out, err := c.Run(context.Background(), RunSpec{
		Image:   "lo:7",
		Mounts:  []string{"/out", "/in", "/out", "/profile"},
		User:    "1000:1000",
		Env:     []string{"HOME=/profile"},
		Offline: true,
		Args:    []string{"soffice", "--headless"},
	})
	require.NoError(t, err)
	assert.Equal(t, "convert ok", string(out))
	require.Len(t, exec.calls, 1)
	assert.Equal(t,
		"podman run --rm --network none --user 1000:1000 -e HOME=/profile"+
			" -v /out:/out -v /in:/in -v /profile:/profile -w /out lo:7 soffice --headless",
		exec.calls[0])
}

func TestRun_Minimal(t *testing.T) {
	assert.Equal(t,
		[]string{"run", "--rm", "img", "true"},
		RunSpec{Image: "img", Args: []string{"true"}}.runArgs())
}

func TestRun_Failures(t *testing.T) {
	c := &cli{bin: "docker", exec: &scriptedExec{}}

	_, err := c.Run(context.Background(), RunSpec{Args: []string{"soffice"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image not set")

	out, err := c.Run(context.Background(), RunSpec{Image: "lo:7"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running docker container lo:7")
	assert.Equal(t, "boom", string(out))
}
