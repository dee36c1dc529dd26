// Package dispatch fans work out over a fixed number of goroutines.
package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one item.
type Outcome[T, R any] struct {
	Index  int
	Item   T
	Result R
	Err    error
}

// Succeeded reports whether the worker returned without error.
func (o Outcome[T, R]) Succeeded() bool { return o.Err == nil }

// RunBounded calls worker for every item with at most limit calls in flight
// and returns one outcome per item in input order. A failing or panicking
// item never stops the others. Items that have not started when ctx is done
// are reported with ctx's error.
func RunBounded[T, R any](ctx context.Context, items []T, limit int, worker func(context.Context, T) (R, error)) []Outcome[T, R] {
	if limit <= 0 {
		limit = 1
	}
	outcomes := make([]Outcome[T, R], len(items))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		outcomes[i] = Outcome[T, R]{Index: i, Item: item}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			outcomes[i].Result, outcomes[i].Err = call(ctx, item, worker)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func call[T, R any](ctx context.Context, item T, worker func(context.Context, T) (R, error)) (res R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("dispatch: worker panic: %v", rec)
		}
	}()
	return worker(ctx, item)
}

// Counts tallies outcomes.
func Counts[T, R any](outcomes []Outcome[T, R]) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// BatchSucceeded holds when the batch is empty or at least one item
// succeeded.
func BatchSucceeded[T, R any](outcomes []Outcome[T, R]) bool {
	if len(outcomes) == 0 {
		return true
	}
	succeeded, _ := Counts(outcomes)
	return succeeded > 0
}
