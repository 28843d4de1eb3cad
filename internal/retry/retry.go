// Package retry wraps fallible operations with capped exponential backoff.
package retry

import (
	"context"
	"time"
)

// Result carries the outcome of a retried operation
type Result[T any] struct {
	Value    T
	Attempts int
	Err      error
}

// Classifier reports whether an error is worth another attempt
type Classifier func(error) bool

// Hook is called before sleeping between attempts
type Hook func(attempt int, delay time.Duration, err error)

// Retrier runs operations under a Policy
type Retrier struct {
	policy    Policy
	retryable Classifier
	onRetry   Hook
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Retrier
type Option func(*Retrier)

// WithClassifier restricts retries to errors the classifier accepts.
// Without a classifier every error is retried.
func WithClassifier(c Classifier) Option {
	return func(r *Retrier) { r.retryable = c }
}

// WithHook registers a callback invoked before each backoff wait
func WithHook(h Hook) Option {
	return func(r *Retrier) { r.onRetry = h }
}

// New creates a Retrier for the given policy
func New(policy Policy, opts ...Option) *Retrier {
	r := &Retrier{
		policy: policy,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do executes op until it succeeds, returns a non-retryable error, or the attempt budget is spent
func Do[T any](ctx context.Context, r *Retrier, op func(ctx context.Context, attempt int) (T, error)) Result[T] {
	var zero T
	var lastErr error

	maxAttempts := max(r.policy.MaxAttempts, 1)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{Value: zero, Attempts: attempt - 1, Err: lastErrOr(lastErr, err)}
		}

		value, err := op(ctx, attempt)
		if err == nil {
			return Result[T]{Value: value, Attempts: attempt}
		}
		lastErr = err

		if r.retryable != nil && !r.retryable(err) {
			return Result[T]{Value: zero, Attempts: attempt, Err: err}
		}

		// No wait after the last attempt
		if attempt == maxAttempts {
			break
		}

		delay := r.policy.Delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, delay, err)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return Result[T]{Value: zero, Attempts: attempt, Err: lastErr}
		}
	}

	return Result[T]{Value: zero, Attempts: maxAttempts, Err: lastErr}
}

func lastErrOr(last, fallback error) error {
	if last != nil {
		return last
	}
	return fallback
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
