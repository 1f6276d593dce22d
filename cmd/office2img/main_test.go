// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/office2img/internal/backend/libreoffice"
	"github.com/pdiddy/office2img/internal/backend/office"
	"github.com/pdiddy/office2img/pkg/types"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("bad flag"), exitFailure},
		{fmt.Errorf("%w: presentation application via office: not installed", types.ErrBackendUnavailable), exitFailure},
		{fmt.Errorf("%w in .", types.ErrNoInputFiles), exitNoInput},
		{fmt.Errorf("%w: converting deck: %w", types.ErrConversion, types.ErrBackendTimeout), exitTimeout},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Cleanup(func() {
		for _, k := range []string{"dpi", "image_format", "mode", "backend_timeout"} {
			viper.Set(k, nil)
		}
	})

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)

	viper.Set("dpi", 96)
	viper.Set("image_format", "JPEG")
	viper.Set("mode", "Text")
	viper.Set("backend_timeout", "90s")
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 96, cfg.DPI)
	assert.Equal(t, types.ImageJPG, cfg.ImageFormat)
	assert.Equal(t, types.ModeText, cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.BackendTimeout)

	viper.Set("dpi", 0)
	_, err = loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dpi")
}

func TestResolveBackend(t *testing.T) {
	assert.Equal(t, types.BackendOffice, resolveBackend(types.BackendAuto, "windows"))
	assert.Equal(t, types.BackendLibreOffice, resolveBackend(types.BackendAuto, "linux"))
	assert.Equal(t, types.BackendOffice, resolveBackend(types.BackendOffice, "darwin"))
}

func TestNewDriver(t *testing.T) {
	cfg := types.DefaultConfig()

	cfg.Backend = types.BackendLibreOffice
	d, err := newDriver(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &libreoffice.Driver{}, d)

	cfg.Backend = types.BackendOffice
	d, err = newDriver(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &office.Driver{}, d)

	// A container image defers runtime detection; no docker needed here.
	cfg.Backend = types.BackendLibreOffice
	cfg.SofficeImage = "libreoffice:latest"
	d, err = newDriver(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &libreoffice.Driver{}, d)
}

func TestRunConvert_EmptyInputWithContainerImage(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o644))
	out := filepath.Join(t.TempDir(), "screenshots")

	keys := map[string]any{
		"input_dir":     in,
		"output_dir":    out,
		"backend":       "libreoffice",
		"soffice_image": "libreoffice:latest",
		"history_db":    "",
	}
	for k, v := range keys {
		viper.Set(k, v)
	}
	t.Cleanup(func() {
		for k := range keys {
			viper.Set(k, nil)
		}
	})

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	err := runConvert(cmd, nil)
	require.ErrorIs(t, err, types.ErrNoInputFiles)
	assert.Equal(t, exitNoInput, exitCode(err))
	assert.NoDirExists(t, out)
}
