// Package engine wraps the external GraphicsMagick process: locating
// the binary, building convert commands, and launching the per-batch
// command interpreter.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable is returned when no working engine binary can be
// resolved. The coordinator treats it as a run-fatal precondition.
var ErrUnavailable = fmt.Errorf("graphicsmagick engine unavailable")

// Directories searched after PATH when the binary is not configured.
// Homebrew and MacPorts installs are commonly missing from GUI PATHs.
var extraSearchDirs = []string{
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"/opt/local/bin",
}

// Params are the per-run conversion settings applied to every command.
type Params struct {
	WidthThreshold   int
	ResizeHeight     int
	Quality          int
	Grayscale        bool
	UnsharpRadius    float64
	UnsharpSigma     float64
	UnsharpAmount    float64
	UnsharpThreshold float64
}

// UnsharpEnabled reports whether the params request an unsharp pass.
func (p Params) UnsharpEnabled() bool {
	return p.UnsharpAmount > 0
}

// CropSpec is a -crop geometry for one spread half.
type CropSpec struct {
	Width, Height, X, Y int
}

// Engine resolves and launches the external converter. Safe for
// concurrent use; resolution is cached.
type Engine struct {
	logger *zap.Logger

	mu       sync.Mutex
	resolved string
}

func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logger.Named("engine")}
}

// Locate resolves a working gm binary: the configured path first, then
// PATH, then the usual package-manager directories. The binary must
// survive a `gm version` probe. The result is cached for the process
// lifetime.
func (e *Engine) Locate(configured string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resolved != "" {
		return e.resolved, nil
	}

	var candidates []string
	if configured != "" {
		candidates = append(candidates, configured)
	}
	if path, err := exec.LookPath("gm"); err == nil {
		candidates = append(candidates, path)
	}
	for _, dir := range extraSearchDirs {
		candidates = append(candidates, dir+"/gm")
	}

	for _, candidate := range candidates {
		if e.verify(candidate) {
			e.logger.Info("engine resolved", zap.String("path", candidate))
			e.resolved = candidate
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrUnavailable, strings.Join(candidates, ", "))
}

func (e *Engine) verify(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := exec.CommandContext(ctx, path, "version").Run()
	if err != nil {
		e.logger.Debug("engine candidate rejected", zap.String("path", path), zap.Error(err))
	}
	return err == nil
}

// Batch is one running `gm batch` subprocess. Commands are written one
// per line to Stdin; the process applies each independently and exits
// when Stdin is closed.
type Batch struct {
	Cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout *bytes.Buffer
	Stderr *bytes.Buffer
}

// waitDelay bounds how long Wait may block on the engine's output
// pipes after the process is killed. Forked engine workers can inherit
// the pipe write ends and outlive their parent; without the bound a
// cancelled batch waits for the whole orphaned pipeline.
const waitDelay = 2 * time.Second

// StartBatch launches the engine in batch mode with stop-on-first-error
// disabled, so one bad image does not abort its siblings. Cancelling
// ctx kills the process; teardown returns within waitDelay even when
// descendants still hold the pipes.
func (e *Engine) StartBatch(ctx context.Context, binPath string) (*Batch, error) {
	cmd := exec.CommandContext(ctx, binPath, "batch", "-stop-on-error", "off", "-")
	cmd.WaitDelay = waitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open engine stdin: %w", err)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	return &Batch{Cmd: cmd, Stdin: stdin, Stdout: &stdout, Stderr: &stderr}, nil
}

// BuildConvert renders one newline-terminated convert command:
//
//	convert "<in>" [-crop WxH+X+Y] -resize xH [-colorspace GRAY]
//	        [-unsharp RxS+A+T] -quality Q "<out>"
func BuildConvert(input, output string, crop *CropSpec, p Params) string {
	var b strings.Builder
	b.WriteString("convert ")
	b.WriteString(quotePath(input))
	if crop != nil {
		fmt.Fprintf(&b, " -crop %dx%d+%d+%d", crop.Width, crop.Height, crop.X, crop.Y)
	}
	fmt.Fprintf(&b, " -resize x%d", p.ResizeHeight)
	if p.Grayscale {
		b.WriteString(" -colorspace GRAY")
	}
	if p.UnsharpEnabled() {
		fmt.Fprintf(&b, " -unsharp %sx%s+%s+%s",
			trimFloat(p.UnsharpRadius),
			trimFloat(p.UnsharpSigma),
			trimFloat(p.UnsharpAmount),
			trimFloat(p.UnsharpThreshold))
	}
	fmt.Fprintf(&b, " -quality %d ", p.Quality)
	b.WriteString(quotePath(output))
	b.WriteString("\n")
	return b.String()
}

// SplitWidths returns the left and right half widths for a spread:
// left gets the extra column of odd widths, right the remainder.
func SplitWidths(width int) (left, right int) {
	left = (width + 1) / 2
	return left, width - left
}

// quotePath escapes backslashes and double quotes, then wraps the whole
// path in double quotes for the engine's line parser.
func quotePath(path string) string {
	escaped := strings.ReplaceAll(path, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// trimFloat renders a float without trailing zeros (1.5 -> "1.5",
// 2.0 -> "2").
func trimFloat(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
