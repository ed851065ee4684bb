// Package analyzer classifies input subdirectories by sampling page
// dimensions, deciding which need per-image spread splitting and which
// can be pooled into the global batch.
package analyzer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DawnLiExp/Me2Comic-sub000/core/fsutil"
	"github.com/DawnLiExp/Me2Comic-sub000/core/probe"
)

// sampleSize is how many images per directory are probed for
// classification.
const sampleSize = 5

// Category says how a directory's images are scheduled.
type Category int

const (
	// Isolated directories contain wide spreads that must be split
	// per-image; they are scheduled at high priority.
	Isolated Category = iota
	// GlobalBatch directories contain narrow pages that are pooled
	// across directories.
	GlobalBatch
)

func (c Category) String() string {
	if c == Isolated {
		return "isolated"
	}
	return "global-batch"
}

// ScanResult is the classification of one input subdirectory.
type ScanResult struct {
	Dir      string
	Images   []string
	Category Category
	HighRes  bool
}

// Analyzer samples and classifies the immediate subdirectories of an
// input root.
type Analyzer struct {
	prober           *probe.Prober
	logger           *zap.Logger
	widthThreshold   int
	highResThreshold int
}

func New(prober *probe.Prober, logger *zap.Logger, widthThreshold, highResThreshold int) *Analyzer {
	return &Analyzer{
		prober:           prober,
		logger:           logger.Named("analyzer"),
		widthThreshold:   widthThreshold,
		highResThreshold: highResThreshold,
	}
}

// Analyze scans root's immediate subdirectories and classifies each one
// that contains at least one supported image. A failure to list root is
// fatal; a cancelled context returns the results completed so far.
func (a *Analyzer) Analyze(ctx context.Context, root string) ([]ScanResult, error) {
	dirs, err := fsutil.Subdirectories(root)
	if err != nil {
		return nil, fmt.Errorf("analyze input root: %w", err)
	}

	results := make([]ScanResult, 0, len(dirs))
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return results, nil
		}

		images, err := fsutil.ListImages(dir)
		if err != nil {
			a.logger.Warn("skipping unreadable directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		if len(images) == 0 {
			a.logger.Warn("skipping directory without supported images", zap.String("dir", dir))
			continue
		}

		res, ok := a.classify(ctx, dir, images)
		if !ok {
			// Cancelled mid-directory; no partial result for it.
			return results, nil
		}
		results = append(results, res)
		a.logger.Info("directory classified",
			zap.String("dir", dir),
			zap.String("category", res.Category.String()),
			zap.Int("images", len(images)),
			zap.Bool("high_res", res.HighRes))
	}
	return results, nil
}

// classify probes up to sampleSize images in listing order. Any sampled
// width at or above the split threshold makes the directory Isolated; an
// unreadable sample also does, conservatively, since splitting handles
// every page safely.
func (a *Analyzer) classify(ctx context.Context, dir string, images []string) (ScanResult, bool) {
	res := ScanResult{Dir: dir, Images: images, Category: GlobalBatch}

	n := len(images)
	if n > sampleSize {
		n = sampleSize
	}
	for _, path := range images[:n] {
		if ctx.Err() != nil {
			return ScanResult{}, false
		}

		dims, err := a.prober.Probe(path)
		if err != nil {
			a.logger.Warn("sample probe failed, treating directory as isolated",
				zap.String("file", path), zap.Error(err))
			res.Category = Isolated
			continue
		}
		if dims.Width >= a.widthThreshold {
			res.Category = Isolated
		}
		if a.highResThreshold > 0 && dims.Width >= a.highResThreshold {
			res.HighRes = true
		}
	}
	return res, true
}
