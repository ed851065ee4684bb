// Package coordinator owns one end-to-end processing run: analysis,
// batching, the worker pool draining the task queue, aggregation, and
// teardown.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/DawnLiExp/Me2Comic-sub000/core/analyzer"
	"github.com/DawnLiExp/Me2Comic-sub000/core/batch"
	"github.com/DawnLiExp/Me2Comic-sub000/core/engine"
	"github.com/DawnLiExp/Me2Comic-sub000/core/executor"
	"github.com/DawnLiExp/Me2Comic-sub000/core/fsutil"
	"github.com/DawnLiExp/Me2Comic-sub000/core/naming"
	"github.com/DawnLiExp/Me2Comic-sub000/core/probe"
)

// ErrCancelled reports that the run was cancelled before completion.
var ErrCancelled = errors.New("run cancelled")

// ErrBusy reports that a run is already in flight.
var ErrBusy = errors.New("a processing run is already active")

// completionLinger keeps the 100%-progress state observable before the
// coordinator transitions back to Idle.
const completionLinger = 300 * time.Millisecond

// State is the coordinator's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateAnalyzing
	StateOrganizing
	StateExecuting
	StateCompleting
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzing:
		return "analyzing"
	case StateOrganizing:
		return "organizing"
	case StateExecuting:
		return "executing"
	case StateCompleting:
		return "completing"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Reporter receives progress updates; formatting belongs to the
// presentation layer, not here.
type Reporter interface {
	Progress(processed, total int)
}

type nopReporter struct{}

func (nopReporter) Progress(int, int) {}

// Options configure one run.
type Options struct {
	InputRoot  string
	OutputRoot string
	Params     engine.Params
	// HighResThreshold flags directories whose pages are large enough
	// to skip sharpening; 0 disables the flag.
	HighResThreshold int
	// Workers and BatchSize override the adaptive values when > 0.
	Workers   int
	BatchSize int
	// EnginePath overrides engine resolution when set.
	EnginePath string
}

// Summary is the aggregate outcome of one run.
type Summary struct {
	TotalImages  int
	Processed    int
	OutputPages  int
	Failed       []string
	PerDirectory map[string]int
	GlobalCount  int
	Workers      int
	Batches      int
	Elapsed      time.Duration
}

// Coordinator drives runs. One instance supports sequential runs; a
// second concurrent Run returns ErrBusy.
type Coordinator struct {
	logger    *zap.Logger
	engine    *engine.Engine
	prober    *probe.Prober
	allocator *naming.Allocator
	reporter  Reporter

	mu    sync.Mutex
	state State
	queue *batch.Queue
	aggMu sync.Mutex
	agg   aggregate
}

// aggregate is the run-wide progress state, owned exclusively by the
// coordinator and mutated only under aggMu.
type aggregate struct {
	total        int
	processed    int
	outputPages  int
	failed       []string
	perDirectory map[string]int
	globalCount  int
}

func New(logger *zap.Logger, eng *engine.Engine, reporter Reporter) *Coordinator {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Coordinator{
		logger:    logger.Named("coordinator"),
		engine:    eng,
		prober:    probe.NewProber(logger),
		allocator: naming.NewAllocator(),
		reporter:  reporter,
		queue:     batch.NewQueue(),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run performs one processing run. Engine availability, output
// directory creation, and input enumeration failures are fatal and
// reported before any batch starts; everything else accumulates into
// the summary. On cancellation the returned error is ErrCancelled and
// no progress is claimed for unfinished batches.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*Summary, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = StateAnalyzing
	c.mu.Unlock()

	start := time.Now()
	summary, err := c.run(ctx, opts)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			c.setState(StateCancelled)
		}
		c.teardown()
		return nil, err
	}

	c.setState(StateCompleting)
	summary.Elapsed = time.Since(start)
	c.logSummary(summary)

	time.Sleep(completionLinger)
	c.teardown()
	return summary, nil
}

func (c *Coordinator) run(ctx context.Context, opts Options) (*Summary, error) {
	enginePath, err := c.engine.Locate(opts.EnginePath)
	if err != nil {
		return nil, err
	}

	scan := analyzer.New(c.prober, c.logger, opts.Params.WidthThreshold, opts.HighResThreshold)
	results, err := scan.Analyze(ctx, opts.InputRoot)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	total := 0
	for _, r := range results {
		total += len(r.Images)
	}

	workers := workerCountFor(total, opts.Workers)
	summary := &Summary{TotalImages: total, Workers: workers, PerDirectory: map[string]int{}}
	if total == 0 {
		c.logger.Info("nothing to convert", zap.String("input", opts.InputRoot))
		return summary, nil
	}

	c.setState(StateOrganizing)
	tasks := batch.Organize(results, opts.OutputRoot, opts.BatchSize, workers)
	summary.Batches = len(tasks)
	for _, t := range tasks {
		if err := fsutil.EnsureDir(t.OutputDir); err != nil {
			return nil, err
		}
	}

	c.allocator.Reset()
	c.queue.Init(tasks)
	c.aggMu.Lock()
	c.agg = aggregate{total: total, perDirectory: map[string]int{}}
	c.aggMu.Unlock()

	c.logger.Info("run organized",
		zap.Int("images", total),
		zap.Int("batches", len(tasks)),
		zap.Int("workers", workers))

	c.setState(StateExecuting)
	if err := c.execute(ctx, enginePath, opts, workers); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	c.aggMu.Lock()
	summary.Processed = c.agg.processed
	summary.OutputPages = c.agg.outputPages
	summary.Failed = append(summary.Failed, c.agg.failed...)
	for k, v := range c.agg.perDirectory {
		summary.PerDirectory[k] = v
	}
	summary.GlobalCount = c.agg.globalCount
	c.aggMu.Unlock()
	return summary, nil
}

// execute drains the queue with exactly `workers` concurrent workers on
// one ants pool. There is no static task assignment: each worker keeps
// pulling the head task until the queue is empty or the run is
// cancelled, so faster workers naturally take more batches.
func (c *Coordinator) execute(ctx context.Context, enginePath string, opts Options, workers int) error {
	pool, err := ants.NewPool(workers, ants.WithPreAlloc(true))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	deps := executor.Deps{
		Engine:       c.engine,
		EnginePath:   enginePath,
		Prober:       c.prober,
		Allocator:    c.allocator,
		Logger:       c.logger,
		ProbeWorkers: workers,
	}

	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		wg.Add(1)
		workerID := id
		submitErr := pool.Submit(func() {
			defer wg.Done()
			c.workerLoop(ctx, workerID, opts, deps)
		})
		if submitErr != nil {
			wg.Done()
			c.logger.Error("worker submit failed", zap.Int("worker", workerID), zap.Error(submitErr))
		}
	}
	wg.Wait()
	return nil
}

func (c *Coordinator) workerLoop(ctx context.Context, workerID int, opts Options, deps executor.Deps) {
	log := c.logger.With(zap.Int("worker", workerID))
	for {
		if ctx.Err() != nil {
			log.Debug("worker exiting: cancelled")
			return
		}
		task, ok := c.queue.Next(workerID)
		if !ok {
			log.Debug("worker exiting: queue drained")
			return
		}

		res, err := executor.Execute(ctx, task, opts.Params, deps)
		if errors.Is(err, executor.ErrCancelled) {
			// Cancelled batches contribute nothing to the aggregate.
			return
		}
		if err != nil {
			log.Error("batch execution error", zap.Error(err))
			continue
		}

		c.record(task, res)
		c.queue.MarkCompleted()
	}
}

// record merges one batch result into the aggregate and emits progress.
// Progress moves per batch, not per image: a batch completes atomically
// from the aggregator's point of view.
func (c *Coordinator) record(task batch.Task, res executor.Result) {
	c.aggMu.Lock()
	c.agg.processed += res.Processed
	c.agg.outputPages += res.OutputPages
	c.agg.failed = append(c.agg.failed, res.Failed...)
	if task.Global {
		c.agg.globalCount += res.Processed
	} else if task.SourceDir != "" {
		c.agg.perDirectory[task.SourceDir] += res.Processed
	}
	processed, total := c.agg.processed, c.agg.total
	c.aggMu.Unlock()

	c.reporter.Progress(processed, total)
}

// teardown clears all run state before the coordinator becomes Idle
// again, on both normal completion and cancellation.
func (c *Coordinator) teardown() {
	c.queue.Init(nil)
	c.allocator.Reset()
	c.aggMu.Lock()
	c.agg = aggregate{}
	c.aggMu.Unlock()
	c.setState(StateIdle)
}

func (c *Coordinator) logSummary(s *Summary) {
	failures := s.Failed
	const maxLogged = 10
	if len(failures) > maxLogged {
		failures = failures[:maxLogged]
	}
	c.logger.Info("run complete",
		zap.Int("total", s.TotalImages),
		zap.Int("processed", s.Processed),
		zap.Int("failed", len(s.Failed)),
		zap.Strings("failed_sample", failures),
		zap.Int("global_batch", s.GlobalCount),
		zap.Int("output_pages", s.OutputPages),
		zap.Duration("elapsed", s.Elapsed))
}

// workerCountFor picks the worker count: the manual override when
// positive, otherwise a staircase on total image count capped at the
// physical core count. Tiny runs get one worker; subprocess startup
// dominates them anyway.
func workerCountFor(totalImages, manual int) int {
	cores := physicalCores()
	if manual > 0 {
		return manual
	}

	switch {
	case totalImages < 10:
		return 1
	case totalImages < 50:
		return minInt(2, cores)
	case totalImages < 150:
		return minInt(4, cores)
	default:
		return cores
	}
}

func physicalCores() int {
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
