package redis

import (
	"context"
	"time"
)

const rateLimitKeyPrefix = "ratelimit:"

var incrWindow = IncrWindow

// RateLimiter is a fixed-window counter shared across server instances
type RateLimiter struct {
	scope  string
	limit  int
	window time.Duration
}

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// NewRateLimiter creates a limiter allowing limit hits per window for each key.
// A non-positive limit disables limiting.
func NewRateLimiter(scope string, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{scope: scope, limit: limit, window: window}
}

// Allow records one hit for key and reports whether it fits the window.
func (l *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l.limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	count, ttl, err := incrWindow(ctx, rateLimitKeyPrefix+l.scope+":"+key, l.window)
	if err != nil {
		return Decision{}, err
	}
	if ttl < 0 {
		ttl = l.window
	}

	if count > int64(l.limit) {
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - int(count)}, nil
}
