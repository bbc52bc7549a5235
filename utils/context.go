package utils

import (
	"context"
	"time"
)

// ContextSleep waits for d. It returns ctx.Err() if ctx is done first.
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
