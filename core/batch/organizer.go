// Package batch turns classified directories into fixed-size conversion
// tasks and schedules them through a priority queue shared by all
// workers.
package batch

import (
	"path/filepath"

	"github.com/DawnLiExp/Me2Comic-sub000/core/analyzer"
)

const (
	// imagesPerIdealBatch drives the auto batch size: enough batches to
	// keep workers fed, large enough to amortize one subprocess launch.
	imagesPerIdealBatch = 40
	maxBatchSize        = 1000
)

// Task is one unit of work: a chunk of images converted by a single
// engine subprocess. Tasks are immutable after creation and consumed by
// exactly one worker.
type Task struct {
	Images    []string
	OutputDir string
	BatchSize int
	Global    bool
	HighRes   bool
	// SourceDir is the input directory the images came from; empty for
	// the pooled global batch.
	SourceDir string
}

// AutoBatchSize computes the batch size for n images and the given
// worker count so that the resulting batch count divides evenly across
// workers. The result is always in [1, maxBatchSize].
func AutoBatchSize(n, workers int) int {
	if n <= 0 {
		return 1
	}
	if workers < 1 {
		workers = 1
	}

	idealBatches := (n + imagesPerIdealBatch - 1) / imagesPerIdealBatch
	// Round up to the next multiple of the worker count.
	adjusted := ((idealBatches + workers - 1) / workers) * workers

	size := (n + adjusted - 1) / adjusted
	if size < 1 {
		size = 1
	}
	if size > maxBatchSize {
		size = maxBatchSize
	}
	return size
}

// SplitIntoBatches cuts images into consecutive chunks of size, the last
// possibly smaller. Order is preserved. Empty input or non-positive size
// yields nil.
func SplitIntoBatches(images []string, size int) [][]string {
	if len(images) == 0 || size <= 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(images)+size-1)/size)
	for start := 0; start < len(images); start += size {
		end := start + size
		if end > len(images) {
			end = len(images)
		}
		chunks = append(chunks, images[start:end])
	}
	return chunks
}

// Organize converts scan results into tasks. Isolated directories are
// chunked individually into per-directory output subfolders; GlobalBatch
// images are pooled across directories and chunked against the output
// root. manualSize <= 0 selects the adaptive size.
func Organize(results []analyzer.ScanResult, outputRoot string, manualSize, workers int) []Task {
	var tasks []Task
	var pooled []string

	for _, r := range results {
		if r.Category == analyzer.GlobalBatch {
			pooled = append(pooled, r.Images...)
			continue
		}

		size := batchSizeFor(len(r.Images), manualSize, workers)
		outDir := filepath.Join(outputRoot, filepath.Base(r.Dir))
		for _, chunk := range SplitIntoBatches(r.Images, size) {
			tasks = append(tasks, Task{
				Images:    chunk,
				OutputDir: outDir,
				BatchSize: size,
				HighRes:   r.HighRes,
				SourceDir: r.Dir,
			})
		}
	}

	if len(pooled) > 0 {
		size := batchSizeFor(len(pooled), manualSize, workers)
		for _, chunk := range SplitIntoBatches(pooled, size) {
			tasks = append(tasks, Task{
				Images:    chunk,
				OutputDir: outputRoot,
				BatchSize: size,
				Global:    true,
			})
		}
	}
	return tasks
}

func batchSizeFor(n, manualSize, workers int) int {
	if manualSize > 0 {
		return manualSize
	}
	return AutoBatchSize(n, workers)
}
