package utils

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Sleep waits for d on clock, returning false if ctx ends first.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
