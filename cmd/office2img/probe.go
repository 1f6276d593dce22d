// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/office2img/internal/backend"
	"github.com/pdiddy/office2img/internal/progress"
)

var probeCmd = &cobra.Command{
	Use:   "probe [document|presentation]...",
	Short: "Check that the DOCX/PPTX backend can be started",
	Long: `Probe starts and immediately stops each named application (both when
none is named) through the configured backend, the same check convert runs
before a batch.`,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	apps := []backend.AppType{backend.DocumentApp, backend.PresentationApp}
	if len(args) > 0 {
		apps = apps[:0]
		for _, a := range args {
			app, err := backend.ParseAppType(a)
			if err != nil {
				return err
			}
			apps = append(apps, app)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer mgr.ShutdownAll(ctx)

	var errs []error
	for _, app := range apps {
		if err := mgr.Probe(ctx, app); err != nil {
			fmt.Fprintf(os.Stdout, "%s %v\n", progress.Error(), err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s %s application available via %s\n", progress.OK(), app, mgr.Driver())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %d of %d applications failed", errors.Join(errs...), len(errs), len(apps))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
