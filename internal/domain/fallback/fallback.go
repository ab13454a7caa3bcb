// Package fallback sequences unreliable providers as ordered tiers.
package fallback

import (
	"context"
	"sync"
)

// Attempt is one tier of a fallback chain. It reports ok=false when the
// provider declined to answer, which moves the chain to the next tier.
type Attempt[T any] func(ctx context.Context) (T, bool)

// Result is the outcome of a single attempt
type Result[T any] struct {
	Value T
	OK    bool
}

// First runs the attempts in order and returns the first successful value
// with its tier index. Nil attempts are skipped, which lets callers disable a
// tier (e.g. a provider without credentials) without rebuilding the chain.
// When every tier declines the zero value, -1 and false are returned.
func First[T any](ctx context.Context, attempts ...Attempt[T]) (T, int, bool) {
	var zero T
	for i, attempt := range attempts {
		if attempt == nil {
			continue
		}
		if ctx.Err() != nil {
			return zero, -1, false
		}
		if v, ok := attempt(ctx); ok {
			return v, i, true
		}
	}
	return zero, -1, false
}

// All runs the attempts concurrently and returns their results indexed by
// call-site position, regardless of completion order.
func All[T any](ctx context.Context, attempts ...Attempt[T]) []Result[T] {
	results := make([]Result[T], len(attempts))

	var wg sync.WaitGroup
	for i, attempt := range attempts {
		if attempt == nil {
			continue
		}
		wg.Add(1)
		go func(i int, attempt Attempt[T]) {
			defer wg.Done()
			v, ok := attempt(ctx)
			results[i] = Result[T]{Value: v, OK: ok}
		}(i, attempt)
	}
	wg.Wait()

	return results
}

// Concurrently folds several attempts into one tier: they are requested in
// parallel, then checked in position order so an earlier attempt wins over a
// later one even if the later one finished first.
func Concurrently[T any](attempts ...Attempt[T]) Attempt[T] {
	return func(ctx context.Context) (T, bool) {
		for _, r := range All(ctx, attempts...) {
			if r.OK {
				return r.Value, true
			}
		}
		var zero T
		return zero, false
	}
}
