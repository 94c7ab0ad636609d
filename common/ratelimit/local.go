package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// LocalLimiter keeps one token bucket per key in process memory. Idle
// buckets expire after two windows.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters *ttlcache.Cache[string, *rate.Limiter]
	policy   Policy
}

// NewLocalLimiter creates an in-process limiter. Call Stop to release it.
func NewLocalLimiter(policy Policy) *LocalLimiter {
	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](2 * policy.Window),
	)
	go limiters.Start()

	return &LocalLimiter{limiters: limiters, policy: policy}
}

// Allow implements Limiter
func (l *LocalLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	limiter := l.bucket(key)

	res := limiter.Reserve()
	if delay := res.Delay(); delay > 0 {
		// Not proceeding, return the token
		res.Cancel()
		return &Result{Allowed: false, Limit: l.policy.Limit, RetryAfter: delay}, nil
	}
	return &Result{Allowed: true, Limit: l.policy.Limit}, nil
}

func (l *LocalLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if item := l.limiters.Get(key); item != nil {
		return item.Value()
	}

	every := l.policy.Window / time.Duration(l.policy.Limit)
	limiter := rate.NewLimiter(rate.Every(every), int(l.policy.Limit))
	l.limiters.Set(key, limiter, ttlcache.DefaultTTL)
	return limiter
}

// Stop stops the expiry loop
func (l *LocalLimiter) Stop() {
	l.limiters.Stop()
}
