package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter implements token bucket algorithm for rate limiting.
// It prevents alert webhooks from being flooded during an active
// brute-force attack, where lockouts can fire in bursts.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a new RateLimiter with the specified sustained rate
// and burst capacity.
//
// Example:
//
//	limiter := NewRateLimiter(0.2, 3) // one alert per 5s, burst of 3
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow reports whether an alert may be sent now. Unlike Wait it never
// blocks: an alert suppressed by the bucket is dropped, not queued, because
// a delayed lockout alert has little value.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
