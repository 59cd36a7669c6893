package feed

import (
	"context"
	"log/slog"
	"time"
)

const (
	retryAttempts = 3
	retryBaseWait = 500 * time.Millisecond
)

// withRetry runs fn with exponential backoff. Context cancellation cuts the
// wait short and returns the last error.
func withRetry(ctx context.Context, name string, fn func() error) error {
	var err error
	backoff := retryBaseWait

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == retryAttempts {
			break
		}
		slog.Warn("feed fetch failed, retrying",
			"feed", name, "attempt", attempt, "backoff", backoff, "err", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return err
		}
		backoff *= 2
	}
	return err
}
