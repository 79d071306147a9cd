// Package poll provides a bounded, blocking poller for asynchronous
// operations that must be re-checked until they reach a terminal state.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultInterval = 5 * time.Second
	defaultTimeout  = 30 * time.Second
)

// TimeoutError is returned by [Until] when the pending predicate never
// became false within the configured budget. Last carries the most recent
// operation result for diagnostics.
type TimeoutError struct {
	Budget  time.Duration
	Elapsed time.Duration
	Last    any
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("polling timed out after %s (budget %s)", e.Elapsed, e.Budget)
}

type options struct {
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a call to [Until].
type Option func(*options) error

// WithInterval sets the sleep duration between polls. It must be positive.
func WithInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive, got %s", d)
		}
		o.interval = d
		return nil
	}
}

// WithTimeout sets the total wall-clock budget, measured from just before
// the first invocation. It must not be negative. A zero timeout allows the
// initial invocation but no retries.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("poll timeout cannot be negative, got %s", d)
		}
		o.timeout = d
		return nil
	}
}

// WithLogger sets the logger used for per-poll events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// Until invokes op, then re-invokes it at a fixed interval while pending
// returns true for its result. It returns the first result for which
// pending is false.
//
// The first invocation always happens, so a result that is immediately
// terminal is returned without any sleeping. Once elapsed wall-clock time
// strictly exceeds the timeout while the result is still pending, Until
// fails with a [*TimeoutError] carrying the last observed result; the
// overrun past the budget is bounded by one interval.
//
// Errors returned by op are never retried and propagate as-is. Cancelling
// ctx aborts the wait between polls and returns ctx.Err().
func Until[T any](ctx context.Context, op func(context.Context) (T, error), pending func(T) bool, opts ...Option) (T, error) {
	o := options{
		interval: defaultInterval,
		timeout:  defaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			var zero T
			return zero, err
		}
	}

	start := time.Now()

	result, err := op(ctx)
	if err != nil {
		return result, err
	}
	o.logger.Debug("poll result", "phase", "initial", "result", result)

	for pending(result) {
		if elapsed := time.Since(start); elapsed > o.timeout {
			return result, &TimeoutError{
				Budget:  o.timeout,
				Elapsed: elapsed,
				Last:    result,
			}
		}

		timer := time.NewTimer(o.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}

		result, err = op(ctx)
		if err != nil {
			return result, err
		}
		o.logger.Debug("poll result", "phase", "poll", "elapsed", time.Since(start), "result", result)
	}

	return result, nil
}
