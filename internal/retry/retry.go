// Package retry retries transient failures with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	retrygo "github.com/avast/retry-go"
)

// Policy controls how Do retries.
type Policy struct {
	// Attempts is the total number of calls, including the first.
	Attempts int
	// BaseDelay is the wait before the second attempt. It doubles each retry.
	BaseDelay time.Duration
	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration
}

// Store is the policy used for session writes.
var Store = Policy{Attempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

// Connect is the policy used while waiting for the database at startup.
var Connect = Policy{Attempts: 8, BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}

// PermanentError wraps an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Do will not retry it.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Do calls fn until it succeeds, returns a PermanentError, ctx is done, or
// the policy runs out of attempts. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	return retrygo.Do(
		func() error {
			err := fn(ctx)
			var pe *PermanentError
			if errors.As(err, &pe) {
				return retrygo.Unrecoverable(pe.Err)
			}
			return err
		},
		retrygo.Context(ctx),
		retrygo.Attempts(uint(max(p.Attempts, 1))),
		retrygo.DelayType(func(n uint, _ error, _ *retrygo.Config) time.Duration {
			return p.backoff(int(n))
		}),
		retrygo.MaxDelay(p.MaxDelay),
		retrygo.LastErrorOnly(true),
	)
}

// backoff returns the wait after the given zero-based attempt: BaseDelay
// doubled per attempt, capped, with +-25% jitter.
func (p Policy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	jitter := d / 4
	if jitter <= 0 {
		return d
	}
	return d - jitter + rand.N(2*jitter+1)
}
