// Package executor runs one batch task end to end: probe, build convert
// commands, stream them to an engine subprocess, and account for what
// actually made it through.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/DawnLiExp/Me2Comic-sub000/core/batch"
	"github.com/DawnLiExp/Me2Comic-sub000/core/engine"
	"github.com/DawnLiExp/Me2Comic-sub000/core/naming"
	"github.com/DawnLiExp/Me2Comic-sub000/core/probe"
)

// ErrCancelled is returned when a batch is abandoned because the run was
// cancelled. Cancelled work is neither success nor failure.
var ErrCancelled = errors.New("batch cancelled")

// outputExt is what the engine re-encodes every page to.
const outputExt = ".jpg"

// Suffixes distinguishing a whole page from the two spread halves.
const (
	suffixSingle     = "-0"
	suffixFirstHalf  = "-1"
	suffixSecondHalf = "-2"
)

// Result is the per-batch accounting merged into the run aggregate.
// Processed + len(Failed) never exceeds the batch's image count.
// OutputPages counts produced files, which exceeds Processed when
// spreads are split in two.
type Result struct {
	Processed   int
	OutputPages int
	Failed      []string
	Global      bool
}

// Deps are the collaborators one executor call needs.
type Deps struct {
	Engine     *engine.Engine
	EnginePath string
	Prober     *probe.Prober
	Allocator  *naming.Allocator
	Logger     *zap.Logger
	// ProbeWorkers sizes the parallel probing sub-pool for large batches.
	ProbeWorkers int
}

// imagePlan is the one or two commands that convert a single image.
type imagePlan struct {
	source   string
	commands []string
}

// Execute converts one batch through a single engine subprocess. Issues
// with individual files accumulate in the Result; only cancellation is
// reported as an error.
func Execute(ctx context.Context, task batch.Task, params engine.Params, deps Deps) (Result, error) {
	log := deps.Logger.Named("executor")
	result := Result{Global: task.Global}

	if err := ctx.Err(); err != nil {
		return Result{Global: task.Global}, ErrCancelled
	}

	plans, failed := buildPlans(ctx, task, params, deps, log)
	result.Failed = failed
	if len(plans) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{Global: task.Global}, ErrCancelled
	}

	queued, pages, streamErr := streamBatch(ctx, plans, deps, log)
	if errors.Is(streamErr, ErrCancelled) {
		return Result{Global: task.Global}, ErrCancelled
	}
	if streamErr != nil {
		// Whole-batch failure: the engine's partial-success accounting
		// cannot be trusted from outside, so every requested image is
		// conservatively reported failed.
		log.Error("batch failed",
			zap.String("output_dir", task.OutputDir),
			zap.Int("images", len(task.Images)),
			zap.Error(streamErr))
		result.Processed = 0
		result.Failed = allBaseNames(task.Images)
		return result, nil
	}

	result.Processed = queued
	result.OutputPages = pages
	return result, nil
}

// buildPlans probes the batch and turns every readable image into its
// convert command(s). Unreadable images are reported failed up front.
func buildPlans(ctx context.Context, task batch.Task, params engine.Params, deps Deps, log *zap.Logger) ([]imagePlan, []string) {
	dims := deps.Prober.ProbeAll(ctx, task.Images, deps.ProbeWorkers)

	var failed []string
	dupes := duplicateStems(task.Images)
	effective := params
	if task.HighRes {
		// High resolution sources skip the unsharp pass.
		effective.UnsharpAmount = 0
	}

	plans := make([]imagePlan, 0, len(task.Images))
	for _, img := range task.Images {
		d, ok := dims[img]
		if !ok {
			failed = append(failed, filepath.Base(img))
			continue
		}

		outBase := filepath.Join(task.OutputDir, outputStem(img, dupes))
		plan := imagePlan{source: img}
		if d.Width < params.WidthThreshold {
			out := deps.Allocator.Generate(outBase, suffixSingle) + outputExt
			plan.commands = append(plan.commands, engine.BuildConvert(img, out, nil, effective))
		} else {
			left, right := engine.SplitWidths(d.Width)
			firstOut := deps.Allocator.Generate(outBase, suffixFirstHalf) + outputExt
			secondOut := deps.Allocator.Generate(outBase, suffixSecondHalf) + outputExt
			plan.commands = append(plan.commands,
				engine.BuildConvert(img, firstOut, &engine.CropSpec{Width: left, Height: d.Height}, effective),
				engine.BuildConvert(img, secondOut, &engine.CropSpec{Width: right, Height: d.Height, X: left}, effective),
			)
		}
		plans = append(plans, plan)
	}
	if len(failed) > 0 {
		log.Warn("images excluded before conversion", zap.Strings("files", failed))
	}
	return plans, failed
}

// streamBatch launches the engine and writes each plan's commands in
// image order. It returns how many images were fully queued and how
// many output pages those commands produce. A non-zero exit or a stream
// failure is a batch-level error.
func streamBatch(ctx context.Context, plans []imagePlan, deps Deps, log *zap.Logger) (int, int, error) {
	b, err := deps.Engine.StartBatch(ctx, deps.EnginePath)
	if err != nil {
		return 0, 0, err
	}

	// Cancellation kills the process through its context; force-close
	// the input too so a blocked write never deadlocks teardown.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = b.Stdin.Close()
		case <-watchDone:
		}
	}()

	queued, pages := 0, 0
	var streamErr error
	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			streamErr = ErrCancelled
			break
		}
		if streamErr = writePlan(ctx, b, plan); streamErr != nil {
			break
		}
		queued++
		pages += len(plan.commands)
	}

	closeErr := b.Stdin.Close()
	waitErr := b.Cmd.Wait()
	logEngineOutput(log, b)

	if ctx.Err() != nil || errors.Is(streamErr, ErrCancelled) {
		return 0, 0, ErrCancelled
	}
	if streamErr != nil {
		return queued, pages, streamErr
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return queued, pages, fmt.Errorf("close engine input: %w", closeErr)
	}
	if waitErr != nil {
		return queued, pages, fmt.Errorf("engine exited abnormally: %w", waitErr)
	}
	return queued, pages, nil
}

func writePlan(ctx context.Context, b *engine.Batch, plan imagePlan) error {
	for _, cmd := range plan.commands {
		if err := writeCommand(ctx, b.Stdin, cmd); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ErrCancelled
			}
			return fmt.Errorf("submit %s: %w", filepath.Base(plan.source), err)
		}
	}
	return nil
}

func logEngineOutput(log *zap.Logger, b *engine.Batch) {
	if out := strings.TrimSpace(b.Stdout.String()); out != "" {
		log.Debug("engine stdout", zap.String("output", out))
	}
	if errOut := strings.TrimSpace(b.Stderr.String()); errOut != "" {
		log.Debug("engine stderr", zap.String("output", errOut))
	}
}

// duplicateStems finds base names (case-insensitive, extension
// stripped) appearing more than once in the batch, which would
// otherwise overwrite each other's output.
func duplicateStems(images []string) map[string]bool {
	counts := make(map[string]int, len(images))
	for _, img := range images {
		counts[strings.ToLower(stem(img))]++
	}
	dupes := make(map[string]bool)
	for k, n := range counts {
		if n > 1 {
			dupes[k] = true
		}
	}
	return dupes
}

// outputStem disambiguates duplicate base names by folding the source
// extension into the output name ("page.png" -> "page_png").
func outputStem(img string, dupes map[string]bool) string {
	s := stem(img)
	if dupes[strings.ToLower(s)] {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(img)), ".")
		return s + "_" + ext
	}
	return s
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func allBaseNames(images []string) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = filepath.Base(img)
	}
	return out
}
