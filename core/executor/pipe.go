package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"
)

// errBrokenPipe marks a write against an engine process that has closed
// its input; the rest of the batch cannot be submitted.
var errBrokenPipe = errors.New("engine input pipe closed")

const (
	// writeChunkSize keeps single write calls small so cancellation is
	// observed between chunks even for long command lines.
	writeChunkSize = 4 * 1024

	// fullPipeRetries bounds backoff retries when the pipe reports
	// temporary backpressure. Go pipe writes normally block instead, so
	// the bound is a guard, not an expected path.
	fullPipeRetries = 50
	fullPipeBackoff = 10 * time.Millisecond
)

// writeCommand streams one command line to the engine's stdin in chunks.
// Interrupted writes are retried by the runtime; a temporarily-full pipe
// is retried with backoff up to fullPipeRetries; a broken pipe returns
// errBrokenPipe; any other error is returned as-is. Cancellation is
// checked before every chunk.
func writeCommand(ctx context.Context, w io.Writer, line string) error {
	data := []byte(line)
	retries := 0

	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := data
		if len(chunk) > writeChunkSize {
			chunk = chunk[:writeChunkSize]
		}

		n, err := w.Write(chunk)
		data = data[n:]
		if err == nil {
			retries = 0
			continue
		}

		switch {
		case errors.Is(err, syscall.EPIPE), errors.Is(err, io.ErrClosedPipe), errors.Is(err, os.ErrClosed):
			return errBrokenPipe
		case errors.Is(err, syscall.EAGAIN):
			retries++
			if retries > fullPipeRetries {
				return fmt.Errorf("engine pipe stayed full after %d retries: %w", fullPipeRetries, err)
			}
			select {
			case <-time.After(fullPipeBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			return fmt.Errorf("write engine command: %w", err)
		}
	}
	return nil
}
