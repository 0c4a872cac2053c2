package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ItemError pairs a failed fan-out item with its error.
type ItemError struct {
	Item string
	Err  error
}

// ForEach runs fn over items with bounded concurrency and a per-item
// timeout, isolating per-item failure: successes come back in input order,
// failures come back as ItemErrors, and the group itself never fails. A
// timed-out item is indistinguishable from a failed one by design.
func ForEach[T any, R any](ctx context.Context, items []T, limit int, timeout time.Duration, label func(T) string, fn func(ctx context.Context, item T) (R, error)) ([]R, []ItemError) {
	if limit <= 0 {
		limit = 1
	}
	results := make([]*R, len(items))
	errs := make([]error, len(items))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			itemCtx := groupCtx
			if timeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(groupCtx, timeout)
				defer cancel()
			}
			r, err := fn(itemCtx, item)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &r
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	ok := make([]R, 0, len(items))
	var failed []ItemError
	for i, r := range results {
		if r != nil {
			ok = append(ok, *r)
			continue
		}
		err := errs[i]
		if err == nil {
			err = fmt.Errorf("item dropped")
		}
		failed = append(failed, ItemError{Item: label(items[i]), Err: err})
	}
	return ok, failed
}
