package persistence

import (
	"context"
	"log"
	"time"
)

// Retry policy for persistence writes: exponential backoff starting at one
// second, doubling, capped at thirty seconds, three attempts total.
const (
	retryBaseDelay  = time.Second
	retryMaxDelay   = 30 * time.Second
	retryMaxAttempt = 3
)

// withRetry runs fn under the write retry policy. The last error is returned
// after the final attempt so the caller can fall back to the offline queue.
func withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := retryBaseDelay
	var err error
	for attempt := 1; attempt <= retryMaxAttempt; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		log.Printf("[PERSIST] %s attempt %d/%d failed: %v", op, attempt, retryMaxAttempt, err)
		if attempt == retryMaxAttempt {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return err
}
