package executor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/DawnLiExp/Me2Comic-sub000/core/batch"
	"github.com/DawnLiExp/Me2Comic-sub000/core/engine"
	"github.com/DawnLiExp/Me2Comic-sub000/core/naming"
	"github.com/DawnLiExp/Me2Comic-sub000/core/probe"
)

// fakeEngine writes a shell script standing in for gm: it drains stdin
// and exits with the given status.
func fakeEngine(t *testing.T, exitCode int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gm")
	script := fmt.Sprintf("#!/bin/sh\ncat >/dev/null\nexit %d\n", exitCode)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func hangingEngine(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gm")
	script := "#!/bin/sh\ncat >/dev/null\nsleep 30\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeJPEGNamed(t *testing.T, dir, name string, width int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, image.NewGray(image.Rect(0, 0, width, 20)), nil); err != nil {
		t.Fatal(err)
	}
	return path
}

func writePage(t *testing.T, dir, name string, width int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, width, 20))); err != nil {
		t.Fatal(err)
	}
	return path
}

func testDeps(t *testing.T, enginePath string) Deps {
	t.Helper()
	log := zap.NewNop()
	return Deps{
		Engine:       engine.New(log),
		EnginePath:   enginePath,
		Prober:       probe.NewProber(log),
		Allocator:    naming.NewAllocator(),
		Logger:       log,
		ProbeWorkers: 2,
	}
}

func testParams() engine.Params {
	return engine.Params{WidthThreshold: 3000, ResizeHeight: 1500, Quality: 85}
}

func TestExecuteCleanBatch(t *testing.T) {
	dir := t.TempDir()
	task := batch.Task{
		Images: []string{
			writePage(t, dir, "p1.png", 1000),
			writePage(t, dir, "p2.png", 1000),
			writePage(t, dir, "wide.png", 4000),
		},
		OutputDir: filepath.Join(dir, "out"),
	}

	res, err := Execute(context.Background(), task, testParams(), testDeps(t, fakeEngine(t, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 3 {
		t.Errorf("processed = %d, want 3", res.Processed)
	}
	if len(res.Failed) != 0 {
		t.Errorf("failed = %v, want none", res.Failed)
	}
}

func TestExecuteProbeFailureExcludesImage(t *testing.T) {
	dir := t.TempDir()
	images := []string{
		writePage(t, dir, "p1.png", 1000),
		writePage(t, dir, "p2.png", 1000),
		filepath.Join(dir, "p3.png"), // never created
		writePage(t, dir, "p4.png", 1000),
		writePage(t, dir, "p5.png", 1000),
	}
	if err := os.WriteFile(images[2], []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	task := batch.Task{Images: images, OutputDir: filepath.Join(dir, "out")}

	res, err := Execute(context.Background(), task, testParams(), testDeps(t, fakeEngine(t, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 4 {
		t.Errorf("processed = %d, want 4", res.Processed)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "p3.png" {
		t.Errorf("failed = %v, want [p3.png]", res.Failed)
	}
}

func TestExecuteNonZeroExitFailsWholeBatch(t *testing.T) {
	dir := t.TempDir()
	task := batch.Task{
		Images: []string{
			writePage(t, dir, "p1.png", 1000),
			writePage(t, dir, "p2.png", 1000),
		},
		OutputDir: filepath.Join(dir, "out"),
	}

	res, err := Execute(context.Background(), task, testParams(), testDeps(t, fakeEngine(t, 3)))
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 0 {
		t.Errorf("processed = %d, want 0 after engine failure", res.Processed)
	}
	if len(res.Failed) != 2 {
		t.Errorf("failed = %v, want both images", res.Failed)
	}
}

func TestExecuteCancellationMidBatch(t *testing.T) {
	dir := t.TempDir()
	task := batch.Task{
		Images:    []string{writePage(t, dir, "p1.png", 1000)},
		OutputDir: filepath.Join(dir, "out"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := Execute(ctx, task, testParams(), testDeps(t, hangingEngine(t)))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if res.Processed != 0 || len(res.Failed) != 0 {
		t.Errorf("cancelled batch asserted results: %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %v; subprocess not killed", elapsed)
	}
}

func TestExecuteDuplicateBaseNames(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	task := batch.Task{
		Images: []string{
			writePage(t, dir, "page.png", 1000),
			writeJPEGNamed(t, sub, "page.jpg", 1000),
		},
		OutputDir: filepath.Join(dir, "out"),
	}

	deps := testDeps(t, fakeEngine(t, 0))
	res, err := Execute(context.Background(), task, testParams(), deps)
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 2 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	// Both disambiguated stems must now be claimable-free variants; the
	// plain stem without extension marker must still be available.
	if got := deps.Allocator.Generate(filepath.Join(dir, "out", "page"), "-0"); got != filepath.Join(dir, "out", "page-0") {
		t.Errorf("plain stem was claimed: %s", got)
	}
}
