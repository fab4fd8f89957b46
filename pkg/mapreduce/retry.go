package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-report-be/pkg/llm"

	"github.com/cenkalti/backoff/v5"
)

// retryPolicy is shared by extraction and synthesis calls.
type retryPolicy struct {
	maxRetries     int
	perCallTimeout time.Duration
	initial        time.Duration
	max            time.Duration
}

func newRetryPolicy(cfg Config) retryPolicy {
	return retryPolicy{
		maxRetries:     cfg.MaxRetries,
		perCallTimeout: cfg.PerCallTimeout,
		initial:        cfg.BackoffInitial,
		max:            cfg.BackoffMax,
	}
}

func (p retryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initial
	b.MaxInterval = p.max
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	return b
}

// callWithRetry runs op until it succeeds, fails permanently, exhausts
// maxRetries+1 attempts, or ctx ends. Each attempt gets its own per-call
// deadline; an attempt that hits it is retried like any transient error.
// It returns the number of attempts made.
func callWithRetry[T any](ctx context.Context, p retryPolicy, onRetry func(attempt int, err error, wait time.Duration), op func(ctx context.Context) (T, error)) (T, int, error) {
	attempts := 0
	var lastErr error

	operation := func() (T, error) {
		attempts++
		callCtx := ctx
		if p.perCallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.perCallTimeout)
			defer cancel()
		}

		v, err := op(callCtx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		if !llm.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.maxRetries+1)),
		// Attempts are bounded by maxRetries and ctx (the run timeout), not
		// by the library's default elapsed-time cap.
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if onRetry != nil {
				onRetry(attempts, err, wait)
			}
		}),
	)
	if err != nil {
		// Retry reports the context error when ctx ends during a wait; keep
		// the provider error that caused the wait as well.
		if lastErr != nil && !errors.Is(err, lastErr) {
			err = fmt.Errorf("%w (last attempt: %w)", err, lastErr)
		}
		return v, attempts, err
	}
	return v, attempts, nil
}

// providerKind maps a final provider error to the run error taxonomy.
func providerKind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrRunTimeout):
		return KindRunTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case llm.IsTransient(err):
		return KindTransientProvider
	default:
		return KindPermanentProvider
	}
}
