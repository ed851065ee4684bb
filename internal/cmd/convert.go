package cmd

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DawnLiExp/Me2Comic-sub000/config"
	"github.com/DawnLiExp/Me2Comic-sub000/core/coordinator"
	"github.com/DawnLiExp/Me2Comic-sub000/core/engine"
	"github.com/DawnLiExp/Me2Comic-sub000/internal/history"
	"github.com/DawnLiExp/Me2Comic-sub000/internal/ui"
)

var (
	outputDir        string
	widthThreshold   int
	resizeHeight     int
	quality          int
	grayscale        bool
	unsharpAmount    float64
	highResThreshold int
	batchSize        int
	workers          int
	enginePath       string
	silent           bool
	noHistory        bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <input-directory>",
	Short: "Convert all comic pages under a directory",
	Long: `Convert scans the immediate subdirectories of the input directory
and converts every image they contain. Output lands in a sibling
directory tree; per-directory options come from the config file and
can be overridden with flags.

Examples:
  me2comic convert ~/scans/one-piece
  me2comic convert --height 1800 --quality 90 ./raw
  me2comic convert --width-threshold 2600 --workers 4 ./raw`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&outputDir, "output", "o", "", "output directory (default: <input>_output)")
	f.IntVar(&widthThreshold, "width-threshold", 0, "pixel width above which pages are split as spreads")
	f.IntVar(&resizeHeight, "height", 0, "target page height in pixels")
	f.IntVarP(&quality, "quality", "q", 0, "JPEG output quality (1-100)")
	f.BoolVar(&grayscale, "grayscale", true, "convert pages to grayscale")
	f.Float64Var(&unsharpAmount, "unsharp", -1, "unsharp mask amount, 0 disables sharpening")
	f.IntVar(&highResThreshold, "highres-threshold", 0, "width at which directories skip sharpening (0 disables)")
	f.IntVar(&batchSize, "batch-size", 0, "images per engine batch (0 = adaptive)")
	f.IntVarP(&workers, "workers", "c", 0, "concurrent engine processes (0 = auto)")
	f.StringVar(&enginePath, "engine", "", "path to the gm binary (default: search PATH)")
	f.BoolVarP(&silent, "silent", "s", false, "suppress the progress bar")
	f.BoolVar(&noHistory, "no-history", false, "skip recording this run in the history journal")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := manager.Get()
	opts := buildOptions(cmd, cfg, args[0])

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := ui.NewProgress(silent)
	coord := coordinator.New(log, engine.New(log), progress)

	startedAt := time.Now()
	summary, err := coord.Run(ctx, opts)
	progress.Stop()
	if err != nil {
		if errors.Is(err, coordinator.ErrCancelled) {
			log.Warn("run cancelled", zap.String("input", opts.InputRoot))
		}
		return err
	}

	ui.PrintSummary(summary)

	if cfg.History.Enabled && !noHistory {
		recordRun(cfg, opts, summary, startedAt)
	}
	return nil
}

// buildOptions layers flag overrides on top of the loaded config. Only
// flags the user actually set override file and environment values.
func buildOptions(cmd *cobra.Command, cfg *config.Config, input string) coordinator.Options {
	conv := cfg.Conversion

	opts := coordinator.Options{
		InputRoot:        input,
		OutputRoot:       input + "_output",
		HighResThreshold: conv.HighResThreshold,
		Workers:          cfg.Concurrency.Workers,
		BatchSize:        cfg.Concurrency.BatchSize,
		EnginePath:       cfg.Tools.GraphicsMagickPath,
		Params: engine.Params{
			WidthThreshold:   conv.WidthThreshold,
			ResizeHeight:     conv.ResizeHeight,
			Quality:          conv.Quality,
			Grayscale:        conv.Grayscale,
			UnsharpRadius:    conv.UnsharpRadius,
			UnsharpSigma:     conv.UnsharpSigma,
			UnsharpAmount:    conv.UnsharpAmount,
			UnsharpThreshold: conv.UnsharpThreshold,
		},
	}

	if outputDir != "" {
		opts.OutputRoot = outputDir
	}
	f := cmd.Flags()
	if f.Changed("width-threshold") {
		opts.Params.WidthThreshold = widthThreshold
	}
	if f.Changed("height") {
		opts.Params.ResizeHeight = resizeHeight
	}
	if f.Changed("quality") {
		opts.Params.Quality = quality
	}
	if f.Changed("grayscale") {
		opts.Params.Grayscale = grayscale
	}
	if f.Changed("unsharp") {
		opts.Params.UnsharpAmount = unsharpAmount
	}
	if f.Changed("highres-threshold") {
		opts.HighResThreshold = highResThreshold
	}
	if f.Changed("batch-size") {
		opts.BatchSize = batchSize
	}
	if f.Changed("workers") {
		opts.Workers = workers
	}
	if f.Changed("engine") {
		opts.EnginePath = enginePath
	}
	return opts
}

func recordRun(cfg *config.Config, opts coordinator.Options, summary *coordinator.Summary, startedAt time.Time) {
	store, err := history.Open(cfg.History.Path, log)
	if err != nil {
		log.Warn("history unavailable", zap.Error(err))
		return
	}
	defer store.Close()

	abs := func(p string) string {
		if a, err := filepath.Abs(p); err == nil {
			return a
		}
		return p
	}
	rec := history.Record{
		StartedAt:   startedAt,
		InputRoot:   abs(opts.InputRoot),
		OutputRoot:  abs(opts.OutputRoot),
		TotalImages: summary.TotalImages,
		Processed:   summary.Processed,
		OutputPages: summary.OutputPages,
		Failed:      summary.Failed,
		Workers:     summary.Workers,
		Batches:     summary.Batches,
		Elapsed:     summary.Elapsed,
	}
	if err := store.Append(rec); err != nil {
		log.Warn("history write failed", zap.Error(err))
	}
}
