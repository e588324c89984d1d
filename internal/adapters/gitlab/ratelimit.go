package gitlab

import (
	"context"
	"time"
)

// RateLimiter issues cooperative delays between paginated requests so a
// long fetch does not hammer the backend.
type RateLimiter interface {
	Delay(ctx context.Context, d time.Duration) error
}

type sleeper struct{}

func NewRateLimiter() RateLimiter { return sleeper{} }

func (sleeper) Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
