package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

var (
	// ErrRetry is the base error for retry operations.
	ErrRetry = errors.New("worker: retry")

	// ErrRetryMaxAttempts is returned when all attempts fail.
	ErrRetryMaxAttempts = fmt.Errorf("%w: max attempts reached", ErrRetry)

	// ErrRetryTimeout is returned when the overall retry budget runs out.
	ErrRetryTimeout = fmt.Errorf("%w: timeout reached", ErrRetry)

	// ErrRetryNotRetryable is returned when an error is not retryable.
	ErrRetryNotRetryable = fmt.Errorf("%w: not retryable", ErrRetry)
)

// BackoffFunc returns the wait before retry attempt (1 for first retry).
type BackoffFunc func(attempt int) time.Duration

// ConstantBackoff waits delay between attempts, varied by jitter (0.2 = ±20%).
func ConstantBackoff(delay time.Duration, jitter float64) BackoffFunc {
	applyJitter := newApplyJitterFunc(jitter)
	return func(int) time.Duration {
		return applyJitter(delay)
	}
}

// ExponentialBackoff waits initialDelay * factor^(attempt-1), capped at
// maxDelay when maxDelay > 0.
func ExponentialBackoff(initialDelay time.Duration, factor float64, maxDelay time.Duration, jitter float64) BackoffFunc {
	applyJitter := newApplyJitterFunc(jitter)
	return func(attempt int) time.Duration {
		backoff := time.Duration(float64(initialDelay) * math.Pow(factor, float64(attempt-1)))
		if maxDelay > 0 && backoff > maxDelay {
			backoff = maxDelay
		}
		return applyJitter(backoff)
	}
}

// ShouldRetryFunc decides whether an error triggers another attempt.
type ShouldRetryFunc func(error) bool

// ShouldNotRetry retries every error except errs.
func ShouldNotRetry(errs ...error) ShouldRetryFunc {
	return func(err error) bool {
		for _, e := range errs {
			if errors.Is(err, e) {
				return false
			}
		}
		return true
	}
}

// RetryConfig configures the Retry middleware.
type RetryConfig struct {
	// ShouldRetry defaults to retrying all errors.
	ShouldRetry ShouldRetryFunc

	// Backoff defaults to 1 second constant backoff with ±20% jitter.
	Backoff BackoffFunc

	// MaxAttempts includes the first attempt. Default 3.
	// Negative values allow unlimited attempts.
	MaxAttempts int

	// Timeout bounds all attempts combined. Default 1 minute.
	Timeout time.Duration
}

func (c RetryConfig) parse() RetryConfig {
	if c.ShouldRetry == nil {
		c.ShouldRetry = ShouldNotRetry()
	}
	if c.Backoff == nil {
		c.Backoff = ConstantBackoff(time.Second, 0.2)
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	} else if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Minute
	}
	return c
}

// RetryError is returned when retrying gives up. It unwraps to both the
// reason (one of the ErrRetry errors or a context error) and every cause.
type RetryError struct {
	Reason   error
	Attempts int
	Causes   []error
}

func (e *RetryError) Error() string {
	if len(e.Causes) == 0 {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s after %d attempts: %s", e.Reason, e.Attempts, e.Causes[len(e.Causes)-1])
}

func (e *RetryError) Unwrap() []error {
	return append([]error{e.Reason}, e.Causes...)
}

type attemptKeyType struct{}

var attemptKey = attemptKeyType{}

// AttemptFromContext returns the one-based attempt number set by Retry,
// or 0 outside of Retry.
func AttemptFromContext(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey).(int)
	return n
}

// Retry runs the handler again on failure, waiting Backoff between
// attempts, until it succeeds, MaxAttempts is reached or Timeout expires.
func Retry[T any](cfg RetryConfig) Middleware[T] {
	cfg = cfg.parse()
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, in T) error {
			start := time.Now()
			var causes []error
			giveUp := func(reason error) error {
				return &RetryError{Reason: reason, Attempts: len(causes), Causes: causes}
			}

			for attempt := 1; ; attempt++ {
				err := next(context.WithValue(ctx, attemptKey, attempt), in)
				if err == nil {
					return nil
				}
				causes = append(causes, err)
				if !cfg.ShouldRetry(err) {
					return giveUp(ErrRetryNotRetryable)
				}
				if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
					return giveUp(ErrRetryMaxAttempts)
				}

				remaining := cfg.Timeout - time.Since(start)
				if remaining <= 0 {
					return giveUp(ErrRetryTimeout)
				}
				wait := time.NewTimer(min(cfg.Backoff(attempt), remaining))
				select {
				case <-ctx.Done():
					wait.Stop()
					return giveUp(ctx.Err())
				case <-wait.C:
				}
			}
		}
	}
}

func newApplyJitterFunc(jitter float64) func(d time.Duration) time.Duration {
	jitter = max(0, min(jitter, 1))
	return func(d time.Duration) time.Duration {
		jitterFactor := 1.0 + (rand.Float64()*2*jitter - jitter)
		return time.Duration(float64(d) * jitterFactor)
	}
}
