// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// Options tunes a parallel run.
type Options struct {
	// Workers bounds concurrency. Zero or less means 2x NumCPU.
	Workers int
	// OnProgress is invoked once per finished file, success or not.
	OnProgress ProgressFunc
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

func (o Options) tick() {
	if o.OnProgress != nil {
		o.OnProgress()
	}
}

// ForEachFile processes files in parallel and returns results in input order.
// The first failure cancels the remaining work and is returned as a ProcessingError.
func ForEachFile[T any](ctx context.Context, files []string, opts Options, fn func(context.Context, string) (T, error)) ([]T, error) {
	if len(files) == 0 {
		return nil, nil
	}

	results := make([]T, len(files))
	p := pool.New().WithContext(ctx).WithFirstError().WithCancelOnError().WithMaxGoroutines(opts.workers())
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			defer opts.tick()
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := fn(ctx, path)
			if err != nil {
				return ProcessingError{Path: path, Err: err}
			}
			results[i] = result
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ForEachFileWithResource is ForEachFile with a per-worker resource such as a parser.
// Resources are created on demand, reused across files and closed when the run ends.
func ForEachFileWithResource[T any, R any](
	ctx context.Context,
	files []string,
	opts Options,
	initResource func() (R, error),
	closeResource func(R),
	fn func(context.Context, R, string) (T, error),
) ([]T, error) {
	if len(files) == 0 {
		return nil, nil
	}

	idle := make(chan R, opts.workers())
	defer func() {
		close(idle)
		for r := range idle {
			if closeResource != nil {
				closeResource(r)
			}
		}
	}()

	acquire := func() (R, error) {
		select {
		case r := <-idle:
			return r, nil
		default:
			return initResource()
		}
	}
	release := func(r R) {
		select {
		case idle <- r:
		default:
			if closeResource != nil {
				closeResource(r)
			}
		}
	}

	return ForEachFile(ctx, files, opts, func(ctx context.Context, path string) (T, error) {
		r, err := acquire()
		if err != nil {
			var zero T
			return zero, fmt.Errorf("init worker resource: %w", err)
		}
		defer release(r)
		return fn(ctx, r, path)
	})
}

// ForEachFileCollectErrors processes every file, collecting all failures instead of stopping at the first.
// Results of successful files are returned in input order.
func ForEachFileCollectErrors[T any](ctx context.Context, files []string, opts Options, fn func(context.Context, string) (T, error)) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	slots := make([]T, len(files))
	ok := make([]bool, len(files))
	errs := &ProcessingErrors{}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(opts.workers())
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			defer opts.tick()
			if err := ctx.Err(); err != nil {
				errs.Add(path, err)
				return nil
			}
			result, err := fn(ctx, path)
			if err != nil {
				errs.Add(path, err)
				return nil
			}
			slots[i], ok[i] = result, true
			return nil
		})
	}
	_ = p.Wait()

	results := make([]T, 0, len(files))
	for i := range slots {
		if ok[i] {
			results = append(results, slots[i])
		}
	}
	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
