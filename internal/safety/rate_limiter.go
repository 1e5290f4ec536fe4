package safety

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting. One token refills every
// refillEvery; the bucket never exceeds capacity. It supports rates below
// one token per second, which the notifier needs for per-minute chat limits.
type RateLimiter struct {
	capacity    int
	tokens      float64
	refillEvery time.Duration
	lastRefill  time.Time
	mutex       sync.Mutex
	name        string
}

// NewRateLimiter creates a rate limiter that starts full.
func NewRateLimiter(name string, capacity int, refillEvery time.Duration) *RateLimiter {
	return &RateLimiter{
		capacity:    capacity,
		tokens:      float64(capacity),
		refillEvery: refillEvery,
		lastRefill:  time.Now(),
		name:        name,
	}
}

// PerMinute creates a limiter allowing n operations per minute with a burst
// of n.
func PerMinute(name string, n int) *RateLimiter {
	return NewRateLimiter(name, n, time.Minute/time.Duration(n))
}

// Allow consumes one token if available.
func (rl *RateLimiter) Allow() bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.nextTokenIn()):
		}
	}
}

// WaitTimeout blocks like Wait but gives up after the timeout, returning
// false without consuming a token.
func (rl *RateLimiter) WaitTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if rl.Allow() {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		wait := rl.nextTokenIn()
		if remaining := time.Until(deadline); wait > remaining {
			wait = remaining + time.Millisecond
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Tokens returns the whole tokens currently available.
func (rl *RateLimiter) Tokens() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.refill()
	return int(rl.tokens)
}

// Name returns the limiter's identifier.
func (rl *RateLimiter) Name() string { return rl.name }

func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed <= 0 {
		return
	}
	rl.tokens += float64(elapsed) / float64(rl.refillEvery)
	if rl.tokens > float64(rl.capacity) {
		rl.tokens = float64(rl.capacity)
	}
	rl.lastRefill = now
}

// nextTokenIn estimates the wait until one token is available.
func (rl *RateLimiter) nextTokenIn() time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		return time.Millisecond
	}
	missing := 1 - rl.tokens
	return time.Duration(missing*float64(rl.refillEvery)) + 10*time.Millisecond
}
