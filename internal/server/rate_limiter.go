// Package server throttles inbound frames per connection so one noisy peer
// cannot monopolize the routing engine.
package server

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window token bucket: up to burst messages per
// refill interval, after which messages are discarded until the window rolls.
type rateLimiter struct {
	mu        sync.Mutex
	tokens    int
	burst     int
	interval  time.Duration
	windowEnd time.Time
}

func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	return &rateLimiter{
		tokens:    burst,
		burst:     burst,
		interval:  interval,
		windowEnd: time.Now().Add(interval),
	}
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if !now.Before(rl.windowEnd) {
		rl.tokens = rl.burst
		rl.windowEnd = now.Add(rl.interval)
	}

	if rl.tokens == 0 {
		return false
	}
	rl.tokens--
	return true
}
