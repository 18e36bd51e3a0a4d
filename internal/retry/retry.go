// Package retry provides a small bounded-retry combinator with a fixed
// backoff, used for CAS write loops and post-write verification.
package retry

import (
	"context"
	"time"
)

// Do runs fn up to attempts times, sleeping backoff between attempts. It
// stops early when fn succeeds, when fn returns an error for which
// retryable reports false, or when the context is done. The last error
// from fn is returned.
func Do(ctx context.Context, attempts int, backoff time.Duration, retryable func(error) bool, fn func(ctx context.Context) error) error {
	var err error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		if retryable != nil && !retryable(err) {
			return err
		}
	}

	return err
}
