// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/office2img/internal/backend"
	"github.com/pdiddy/office2img/internal/backend/libreoffice"
	"github.com/pdiddy/office2img/internal/backend/office"
	"github.com/pdiddy/office2img/internal/container"
	"github.com/pdiddy/office2img/pkg/types"
)

func init() {
	d := types.DefaultConfig()
	viper.SetDefault("dpi", d.DPI)
	viper.SetDefault("image_format", string(d.ImageFormat))
	viper.SetDefault("output_dir", d.OutputDir)
	viper.SetDefault("input_dir", d.InputDir)
	viper.SetDefault("mode", string(d.Mode))
	viper.SetDefault("backend", string(d.Backend))
	viper.SetDefault("backend_timeout", d.BackendTimeout)
	viper.SetDefault("soffice_path", d.SofficePath)
	viper.SetDefault("log_level", defaultLogLvl)
}

func bindFlag(key string, f *pflag.Flag) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("binding flag for %s: %v", key, err))
	}
}

// loadConfig resolves the batch configuration from flags, environment and
// config file.
func loadConfig() (types.Config, error) {
	format := strings.ToLower(viper.GetString("image_format"))
	if format == "jpeg" {
		format = string(types.ImageJPG)
	}
	cfg := types.Config{
		DPI:            viper.GetInt("dpi"),
		ImageFormat:    types.ImageFormat(format),
		OutputDir:      viper.GetString("output_dir"),
		InputDir:       viper.GetString("input_dir"),
		Mode:           types.Mode(strings.ToLower(viper.GetString("mode"))),
		Backend:        types.BackendKind(strings.ToLower(viper.GetString("backend"))),
		BackendTimeout: viper.GetDuration("backend_timeout"),
		SofficePath:    viper.GetString("soffice_path"),
		SofficeImage:   viper.GetString("soffice_image"),
		HistoryDB:      viper.GetString("history_db"),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolveBackend turns auto into the platform's driver kind.
func resolveBackend(kind types.BackendKind, goos string) types.BackendKind {
	if kind != types.BackendAuto {
		return kind
	}
	if goos == "windows" {
		return types.BackendOffice
	}
	return types.BackendLibreOffice
}

// newDriver builds the DOCX/PPTX driver selected by cfg.
func newDriver(cfg types.Config, log *logrus.Logger) (backend.Driver, error) {
	switch resolveBackend(cfg.Backend, runtime.GOOS) {
	case types.BackendOffice:
		return office.New(log), nil
	case types.BackendLibreOffice:
		var runner libreoffice.Runner = &libreoffice.LocalRunner{Bin: cfg.SofficePath}
		if cfg.SofficeImage != "" {
			// The runtime is detected on first use, during preflight.
			runner = &libreoffice.ContainerRunner{Detect: container.DetectRuntime, Image: cfg.SofficeImage, Bin: cfg.SofficePath}
		}
		return libreoffice.New(runner, log), nil
	}
	return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
}

// newManager builds the session manager for cfg.
func newManager(cfg types.Config) (*backend.Manager, error) {
	drv, err := newDriver(cfg, logger)
	if err != nil {
		return nil, err
	}
	return backend.NewManager(drv, cfg.BackendTimeout, logger), nil
}
