package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter spaces out calls to a backing store so a batch stays inside the
// store's request budget.
type Limiter interface {
	Wait(ctx context.Context) error
}

type tokenBucket struct {
	limiter *rate.Limiter
}

// New returns a token bucket refilled at rps tokens per second. A
// non-positive rps disables limiting.
func New(rps float64, burst int) Limiter {
	if rps <= 0 {
		return Unlimited()
	}
	if burst <= 0 {
		burst = 1
	}
	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *tokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

type unlimited struct{}

func Unlimited() Limiter {
	return unlimited{}
}

func (unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}
