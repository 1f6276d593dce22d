// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the office2img CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/office2img/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Process exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitNoInput   = 2
	exitTimeout   = 3
	defaultLogLvl = "warn"
)

// logger is the diagnostic log; progress output goes to stdout.
var logger = logrus.New()

// rootCmd is the base command for the office2img CLI.
var rootCmd = &cobra.Command{
	Use:   "office2img",
	Short: "Convert PDF, DOCX and PPTX files to page images or slide text",
	Long: `office2img converts every PDF, DOCX and PPTX file in a directory into
per-page or per-slide images, or collects the text of every presentation
into one transcript.

PDFs are rendered directly. DOCX and PPTX files are opened by an external
application: Microsoft Office through COM automation on Windows, or
LibreOffice in headless mode (locally or from a container image).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./office2img.yaml or ~/.config/office2img/office2img.yaml)")
	pf.String("log-level", defaultLogLvl, "diagnostic log level: debug, info, warn, or error")
	pf.String("backend", string(types.BackendAuto), "DOCX/PPTX backend: auto, office, or libreoffice")
	pf.Duration("timeout", types.DefaultBackendTimeout, "bound on every backend call (0 disables)")
	pf.String("soffice", types.DefaultSofficePath, "LibreOffice binary")
	pf.String("soffice-image", "", "run LibreOffice from this container image")
	pf.String("history-db", "", "SQLite file recording every batch (empty disables)")

	bindFlag("log_level", pf.Lookup("log-level"))
	bindFlag("backend", pf.Lookup("backend"))
	bindFlag("backend_timeout", pf.Lookup("timeout"))
	bindFlag("soffice_path", pf.Lookup("soffice"))
	bindFlag("soffice_image", pf.Lookup("soffice-image"))
	bindFlag("history_db", pf.Lookup("history-db"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("office2img")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "office2img"))
		}
	}

	viper.SetEnvPrefix("OFFICE2IMG")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setupLogger() error {
	lvl, err := logrus.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetOutput(os.Stderr)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: lvl < logrus.DebugLevel})
	return nil
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, types.ErrBackendTimeout):
		return exitTimeout
	case errors.Is(err, types.ErrNoInputFiles):
		return exitNoInput
	default:
		return exitFailure
	}
}

func main() {
	err := rootCmd.Execute()
	os.Exit(exitCode(err))
}
