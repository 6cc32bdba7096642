// Package retry runs external calls with exponential backoff and a per-attempt timeout.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Defaults for Policy fields left at zero.
const (
	DefaultAttempts        = 3
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// Policy configures a retry loop.
type Policy struct {
	// Attempts is the total number of calls, including the first.
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// AttemptTimeout bounds each call; zero leaves only the caller's deadline.
	AttemptTimeout time.Duration
}

// DefaultPolicy returns 3 attempts, 200ms initial backoff, 5s cap.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:        DefaultAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultInitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultMaxInterval
	}
	return p
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as worth retrying. Nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient or is a per-attempt deadline.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// Do calls op until it succeeds, returns a non-transient error, or attempts run out.
// The parent context cancels the whole loop; AttemptTimeout cancels only one call.
func Do(ctx context.Context, p Policy, logger *zap.Logger, name string, op func(ctx context.Context) error) error {
	p = p.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(p.Attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		err := call(ctx, p.AttemptTimeout, op)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Retrying after transient error",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err != nil && lastErr != nil && !errors.Is(err, lastErr) {
		// Context ended while waiting between attempts.
		return errors.Join(lastErr, err)
	}
	return err
}

func call(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}
