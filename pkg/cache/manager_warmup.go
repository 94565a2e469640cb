package cache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WarmUpItem is one key/producer pair for WarmUp/WarmUpParallel.
type WarmUpItem[T any] struct {
	Key     string
	Produce Producer[T]
	Opts    []Option
}

// WarmUp populates items sequentially, stopping at the first error.
func WarmUp[T any](ctx context.Context, m *Manager, items []WarmUpItem[T]) error {
	for _, it := range items {
		value, err := it.Produce(ctx)
		if err != nil {
			return err
		}
		if err := setValue(ctx, m, it.Key, value, newOptions(it.Opts...)); err != nil {
			return err
		}
	}
	return nil
}

// WarmUpParallel populates items concurrently, bounded by concurrency.
// concurrency <= 0 means unbounded. The first error cancels the
// remaining producers and is returned; already-written items are not
// rolled back.
func WarmUpParallel[T any](ctx context.Context, m *Manager, items []WarmUpItem[T], concurrency int) error {
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for _, it := range items {
		it := it
		g.Go(func() error {
			value, err := it.Produce(gctx)
			if err != nil {
				return err
			}
			return setValue(gctx, m, it.Key, value, newOptions(it.Opts...))
		})
	}
	return g.Wait()
}
