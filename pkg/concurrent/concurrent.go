package concurrent

import (
	"errors"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for every item on at most workers goroutines and waits
// for all of them. Unlike a plain errgroup it never stops early: every item is
// visited and all errors are joined in item order. workers <= 0 means one
// goroutine per item.
func ForEach[T any](items []T, workers int, action func(T) error) error {
	errs := make([]error, len(items))

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, item := range items {
		g.Go(func() error {
			errs[i] = action(item)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
