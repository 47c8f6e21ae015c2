package usecase

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one ForEach item.
type Outcome[T any] struct {
	Item T
	Err  error
}

// ForEach runs fn for every item concurrently and waits for all of them.
// A failing or panicking item never stops the others.
func ForEach[T any](ctx context.Context, items []T, fn func(context.Context, T) error) []Outcome[T] {
	outcomes := make([]Outcome[T], len(items))

	// Plain Group: a failure must not cancel the siblings' context.
	var g errgroup.Group
	for i, item := range items {
		outcomes[i].Item = item
		g.Go(func() error {
			outcomes[i].Err = safeCall(ctx, item, fn)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Join aggregates the failures of outcomes, nil if every item succeeded.
func Join[T any](outcomes []Outcome[T]) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

func safeCall[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic for %v: %v", item, r)
		}
	}()
	return fn(ctx, item)
}
