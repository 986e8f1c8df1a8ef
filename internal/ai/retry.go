package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrExhausted is matched by a ServiceError whose attempts all failed.
var ErrExhausted = errors.New("ai retries exhausted")

// ServiceError reports a failed AI call.
type ServiceError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s call failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ExternalService names the failing collaborator.
func (e *ServiceError) ExternalService() string { return "ai:" + e.Provider }

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

// retrier runs a call under the rate limiter with bounded attempts.
type retrier struct {
	provider string
	attempts int
	delay    time.Duration
	timeout  time.Duration
	jitter   float64
	limiter  *rate.Limiter
	logger   *zap.Logger
	// sleep waits for d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetrier(provider string, cfg Config, logger *zap.Logger) *retrier {
	return &retrier{
		provider: provider,
		attempts: cfg.Attempts,
		delay:    cfg.RetryDelay,
		timeout:  cfg.AttemptTimeout,
		jitter:   cfg.Jitter,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60.0), cfg.Burst),
		logger:   logger,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoff returns the wait after the zero-based attempt.
func (r *retrier) backoff(attempt int) time.Duration {
	d := r.delay * time.Duration(attempt+1)
	if r.jitter > 0 && d > 0 {
		d += time.Duration(rand.Float64() * r.jitter * float64(d))
	}
	return d
}

// do runs call until it succeeds, fails with a non-retryable error, or the
// attempts run out. Each attempt gets its own timeout.
func (r *retrier) do(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.backoff(attempt-1)); err != nil {
				return "", &ServiceError{Provider: r.provider, Attempts: attempt, Err: err}
			}
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return "", &ServiceError{Provider: r.provider, Attempts: attempt, Err: fmt.Errorf("rate limiter error: %w", err)}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		out, err := call(attemptCtx)
		cancel()
		if err == nil {
			return out, nil
		}

		lastErr = err
		r.logger.Warn("ai call failed",
			zap.String("provider", r.provider),
			zap.Int("attempt", attempt+1),
			zap.Int("attempts", r.attempts),
			zap.Error(err))

		if ctx.Err() != nil {
			return "", &ServiceError{Provider: r.provider, Attempts: attempt + 1, Err: ctx.Err()}
		}
		// A per-attempt timeout is retried like a transient failure.
		if !isRetryableError(err) && !errors.Is(err, context.DeadlineExceeded) {
			return "", &ServiceError{Provider: r.provider, Attempts: attempt + 1, Err: err}
		}
	}
	return "", &ServiceError{
		Provider: r.provider,
		Attempts: r.attempts,
		Err:      fmt.Errorf("%w: %w", ErrExhausted, lastErr),
	}
}
