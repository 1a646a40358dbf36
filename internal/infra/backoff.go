package infra

import (
	"context"
	"time"
)

const (
	// Standard backoff constants for connection loops.
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second

	// Broadcast retries are short-lived; the confirmation window pays for
	// long waits, so the cap is much lower.
	broadcastBaseDelay = 500 * time.Millisecond
	broadcastMaxDelay  = 4 * time.Second
)

// CalculateBackoff returns the exponential backoff duration for a given retry count.
// Logic: baseDelay * 2^retryCount, capped at maxDelay.
// If retryCount is negative, it returns baseDelay.
func CalculateBackoff(retryCount int) time.Duration {
	return expBackoff(retryCount, baseDelay, maxDelay)
}

// BroadcastBackoff returns the delay before re-sending an on-chain transaction.
func BroadcastBackoff(attempt int) time.Duration {
	return expBackoff(attempt, broadcastBaseDelay, broadcastMaxDelay)
}

func expBackoff(retryCount int, base, max time.Duration) time.Duration {
	if retryCount < 0 {
		return base
	}

	// 2^30 seconds already exceeds any cap used here.
	if retryCount > 30 {
		return max
	}

	backoff := base * time.Duration(1<<retryCount)
	if backoff > max {
		return max
	}
	return backoff
}

// SleepBackoff waits for the given delay or until the context is cancelled.
func SleepBackoff(ctx context.Context, delay time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
