// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/office2img/internal/batch"
	"github.com/pdiddy/office2img/internal/history"
	"github.com/pdiddy/office2img/internal/raster"
	"github.com/pdiddy/office2img/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert every document in the input directory",
	Long: `Convert scans the input directory (not recursively) and writes one
image per page or slide to <output>/<file stem>/page_NNN.<format> or
slide_NNN.<format>.

With --mode text only presentations are read, and the text of every slide
is collected into <output>/all_presentations.txt.

The backends needed by the discovered files are checked before anything is
written; if one is unavailable the batch is aborted.`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}

	o := batch.New(cfg, mgr,
		batch.WithOpener(raster.OpenFitz),
		batch.WithOutput(os.Stdout),
		batch.WithLogger(logger),
	)
	res, runErr := o.Run(ctx)

	if cfg.HistoryDB != "" {
		recordHistory(ctx, cfg, mgr.Driver(), res)
	}
	return runErr
}

// recordHistory stores the batch outcome; failures only warn.
func recordHistory(ctx context.Context, cfg types.Config, driver string, res types.BatchResult) {
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		logger.WithError(err).Warn("history database unavailable; run not recorded")
		return
	}
	defer store.Close()

	id, err := store.RecordRun(ctx, cfg, driver, res)
	if err != nil {
		logger.WithError(err).Warn("recording run failed")
		return
	}
	fmt.Fprintf(os.Stderr, "Recorded run %s\n", id)
}

func init() {
	f := convertCmd.Flags()
	f.Int("dpi", types.DefaultDPI, "render resolution in dots per inch")
	f.String("format", string(types.ImagePNG), "image format: png or jpg")
	f.StringP("output", "o", types.DefaultOutputDir, "base output directory")
	f.StringP("input", "i", types.DefaultInputDir, "directory scanned for documents")
	f.String("mode", string(types.ModeImages), "images or text")

	bindFlag("dpi", f.Lookup("dpi"))
	bindFlag("image_format", f.Lookup("format"))
	bindFlag("output_dir", f.Lookup("output"))
	bindFlag("input_dir", f.Lookup("input"))
	bindFlag("mode", f.Lookup("mode"))

	rootCmd.AddCommand(convertCmd)
}
