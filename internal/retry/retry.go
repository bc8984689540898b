// Package retry provides a small bounded exponential backoff policy
// parameterized by an error classifier, shared by booking creation and slot
// lock acquisition.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/GAMA-00/gato-app-sub003/internal/store"
)

// Classifier reports whether an error is worth retrying. Conflicts are
// never retryable: a taken slot stays taken, and silently retrying a
// booking into a different slot is forbidden.
type Classifier func(error) bool

// TransientOnly is the default classifier: everything is presumed a
// transient store error except conflicts, missing rows and cancelled
// contexts.
func TransientOnly(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrSlotsUnavailable),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   Classifier
}

// DefaultPolicy bounds retries to a small number of attempts so a dead
// store surfaces quickly instead of hanging a checkout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Retryable:   TransientOnly,
	}
}

// Do runs fn until it succeeds, the classifier rejects the error, attempts
// run out, or the context ends. The last error is returned unwrapped so
// errors.Is checks still work at the caller.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = TransientOnly
	}

	delay := p.BaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
