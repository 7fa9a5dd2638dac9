// Package parallel fans work out across worker goroutines.
package parallel

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use; <= 0 means NumCPU.
	MinChunkSize int  // Minimum items per worker to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 8,
	}
}

// WithWorkers returns cfg using n workers; n <= 0 keeps the CPU count.
func (cfg Config) WithWorkers(n int) Config {
	if n > 0 {
		cfg.NumWorkers = n
	}
	cfg.Enabled = true
	cfg.Enabled = cfg.Workers(math.MaxInt32) > 1
	return cfg
}

// Workers returns the number of workers used for n items. Callers size
// per-worker state with it; worker ids passed to fn are in [0, Workers(n)).
func (cfg Config) Workers(n int) int {
	workers := cfg.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if !cfg.Enabled || n <= 0 {
		return 1
	}
	chunk := max(cfg.MinChunkSize, 1)
	return max(1, min(workers, (n+chunk-1)/chunk))
}

// ForWorkers executes fn(worker, i) for i in [0, n). Items are split into
// contiguous chunks, one per worker, so a worker never runs concurrently with
// itself. The first error cancels ctx and is returned.
func ForWorkers(ctx context.Context, n int, cfg Config, fn func(worker, i int) error) error {
	workers := cfg.Workers(n)
	if workers == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(0, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start, end := w*chunk, min((w+1)*chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(w, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
