// Package retry wraps fallible remote calls in bounded exponential backoff.
//
// Errors are transient unless wrapped with Permanent. Permanent errors and
// context cancellation stop the loop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second

	// MaxDelay caps one backoff wait unless BaseDelay is already larger
	MaxDelay = 5 * time.Minute
)

// Policy controls how many times an action runs and how long to wait
// between attempts. The zero value uses the defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// OnRetry is called before each backoff sleep
	OnRetry func(label string, attempt int, delay time.Duration, err error)

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns 3 attempts with a 2s base delay
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// Delay is the wait after the given failed attempt (1-based):
// BaseDelay * 2^(attempt-1), capped at max(MaxDelay, BaseDelay).
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		return 0
	}
	limit := max(MaxDelay, base)

	d := base
	for i := 1; i < attempt; i++ {
		if d >= limit/2 {
			return limit
		}
		d *= 2
	}
	return d
}

// ExhaustedError is returned after the final attempt fails
type ExhaustedError struct {
	Label    string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempts: %v", e.Label, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as fatal so Do returns it without retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs fn until it succeeds, returns a permanent error, the context is
// cancelled, or the policy's attempts are used up.
func Do[T any](ctx context.Context, p Policy, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.attempts()

	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if attempt >= maxAttempts {
			return zero, &ExhaustedError{Label: label, Attempts: attempt, Err: err}
		}

		delay := p.Delay(attempt)
		slog.Warn("Retrying after failure",
			"label", label,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err)
		if p.OnRetry != nil {
			p.OnRetry(label, attempt, delay, err)
		}

		sleep := p.sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
