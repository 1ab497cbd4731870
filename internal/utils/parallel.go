package utils

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParallelFunc is a function that can be executed in parallel.
type ParallelFunc func(ctx context.Context) error

// RunParallel executes funcs concurrently and returns once all complete.
// Errors are collected in input order; one failure does not stop the others.
func RunParallel(ctx context.Context, funcs ...ParallelFunc) []error {
	if len(funcs) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	errs := make([]error, len(funcs))

	for i, fn := range funcs {
		g.Go(func() error {
			errs[i] = fn(ctx)
			return nil // a non-nil return would cancel the siblings
		})
	}
	_ = g.Wait()

	var out []error
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// MapParallel applies fn to every item with at most limit calls in flight.
// results[i] and errs[i] belong to items[i].
func MapParallel[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			results[i], errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}
