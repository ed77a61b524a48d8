// Package asyncx holds the small set of concurrency helpers the service
// uses for startup and health probing.
package asyncx

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one settled call.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) OK() bool { return r.Err == nil }

// AllSettled runs every fn concurrently and returns one Result per fn, in
// order, once all have returned.
func AllSettled[T any](ctx context.Context, fns ...func(context.Context) (T, error)) []Result[T] {
	results := make([]Result[T], len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Go(func() {
			v, err := fn(ctx)
			results[i] = Result[T]{Value: v, Err: err}
		})
	}
	wg.Wait()
	return results
}

// RetryWithBackoff calls fn up to attempts times. The pause between
// attempts starts at initialDelay and doubles each time. onRetry, if not
// nil, sees every failed attempt that will be retried.
func RetryWithBackoff[T any](
	ctx context.Context,
	attempts int,
	initialDelay time.Duration,
	onRetry func(attempt int, err error),
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T
	delay := initialDelay
	var err error
	for i := range attempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if i == attempts-1 {
			break
		}
		if onRetry != nil {
			onRetry(i+1, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return zero, err
}

// WithTimeout runs fn with a deadline of d. If fn ignores its context the
// call still returns at the deadline.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	ch := make(chan Result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()

	select {
	case r := <-ch:
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
