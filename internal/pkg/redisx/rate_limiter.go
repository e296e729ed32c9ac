// internal/pkg/redisx/rate_limiter.go
package redisx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginWindow is the period over which failed login attempts are counted.
const LoginWindow = 15 * time.Minute

type RateLimiter struct {
	client      redis.Cmdable
	maxAttempts int64
	window      time.Duration
}

func NewRateLimiter(client redis.Cmdable, maxAttempts int64) *RateLimiter {
	return &RateLimiter{client: client, maxAttempts: maxAttempts, window: LoginWindow}
}

func loginKey(ip, username string) string {
	return fmt.Sprintf("ratelimit:login:%s:%s", ip, strings.ToLower(username))
}

// CheckLoginAttempt counts one attempt and reports whether it is allowed,
// with the remaining attempts and the time until the window resets.
func (r *RateLimiter) CheckLoginAttempt(ctx context.Context, ip, username string) (bool, int64, time.Duration, error) {
	key := loginKey(ip, username)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, 0, fmt.Errorf("failed to increment login attempt: %w", err)
	}

	// Set expiration on first attempt
	if count == 1 {
		r.client.Expire(ctx, key, r.window)
	}

	remaining := r.maxAttempts - count
	if remaining < 0 {
		remaining = 0
	}

	retryAfter := time.Duration(0)
	if count > r.maxAttempts {
		ttl, err := r.client.TTL(ctx, key).Result()
		if err == nil && ttl > 0 {
			retryAfter = ttl
		} else {
			retryAfter = r.window
		}
	}

	return count <= r.maxAttempts, remaining, retryAfter, nil
}

// ResetLoginAttempts resets the login attempt counter
func (r *RateLimiter) ResetLoginAttempts(ctx context.Context, ip, username string) error {
	return r.client.Del(ctx, loginKey(ip, username)).Err()
}
