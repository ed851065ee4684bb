// Package probe reads image dimensions from file headers without decoding
// pixel data.
package probe

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	_ "image/jpeg"
	_ "image/png"
)

// serialLimit is the set size below which parallel probing is not worth
// the goroutine overhead.
const serialLimit = 20

// Dimensions holds an image's pixel size.
type Dimensions struct {
	Width  int
	Height int
}

// Prober reads image dimensions. Safe for concurrent use.
type Prober struct {
	logger *zap.Logger
}

func NewProber(logger *zap.Logger) *Prober {
	return &Prober{logger: logger.Named("probe")}
}

// Probe returns the dimensions of the image at path. Only the header is
// read; image.DecodeConfig never touches pixel data.
func (p *Prober) Probe(path string) (Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Dimensions{}, fmt.Errorf("read header %s: %w", path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Dimensions{}, fmt.Errorf("read header %s: non-positive dimensions", path)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// ProbeAll probes every path and returns a map of successes; unreadable
// images are logged and omitted. Small sets run serially, larger sets in
// parallel chunks of roughly equal size. Cancellation stops between
// chunks and between serial probes.
func (p *Prober) ProbeAll(ctx context.Context, paths []string, workers int) map[string]Dimensions {
	if workers < 1 {
		workers = 1
	}

	if len(paths) < serialLimit || workers == 1 {
		out := make(map[string]Dimensions, len(paths))
		for _, path := range paths {
			if ctx.Err() != nil {
				return out
			}
			dims, err := p.Probe(path)
			if err != nil {
				p.logger.Warn("dimension probe failed", zap.String("file", path), zap.Error(err))
				continue
			}
			out[path] = dims
		}
		return out
	}

	out := make(map[string]Dimensions, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(paths) + workers - 1) / workers
	for start := 0; start < len(paths); start += chunk {
		end := start + chunk
		if end > len(paths) {
			end = len(paths)
		}
		part := paths[start:end]
		g.Go(func() error {
			local := make(map[string]Dimensions, len(part))
			for _, path := range part {
				if gctx.Err() != nil {
					break
				}
				dims, err := p.Probe(path)
				if err != nil {
					p.logger.Warn("dimension probe failed", zap.String("file", path), zap.Error(err))
					continue
				}
				local[path] = dims
			}
			mu.Lock()
			for k, v := range local {
				out[k] = v
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers only report via the shared map; the group never errors.
	_ = g.Wait()
	return out
}
