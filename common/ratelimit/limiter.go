package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lyzr/launchpad/common/logger"
	rediscommon "github.com/lyzr/launchpad/common/redis"
)

// Result contains the result of a rate limit check
type Result struct {
	Allowed      bool          // Whether the request is allowed
	CurrentCount int64         // Requests counted in the window (0 when unknown)
	Limit        int64         // The limit that was checked
	RetryAfter   time.Duration // Time until a request would be allowed (0 if allowed)
}

// Limiter checks and counts one request against key
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Policy allows Limit requests per Window for each key
type Policy struct {
	Limit  int64
	Window time.Duration
}

// Enabled reports whether the policy limits anything
func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// Fixed window counter: INCR, set the expiry on the first hit, and report
// {allowed, count, limit, retry_after_ms}
const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
local limit = tonumber(ARGV[1])
if current > limit then
	local ttl = redis.call("PTTL", KEYS[1])
	if ttl < 0 then
		ttl = tonumber(ARGV[2])
	end
	return {0, current, limit, ttl}
end
return {1, current, limit, 0}
`

// RedisLimiter is a fixed-window limiter shared by every replica
type RedisLimiter struct {
	redis  *redis.Client
	script *redis.Script
	scope  string
	policy Policy
	log    *logger.Logger
}

// NewRedisLimiter creates a limiter whose counters live under rate_limit:{scope}:
func NewRedisLimiter(client *rediscommon.Client, scope string, policy Policy, log *logger.Logger) *RedisLimiter {
	return &RedisLimiter{
		redis:  client.GetUnderlying(),
		script: redis.NewScript(fixedWindowScript),
		scope:  scope,
		policy: policy,
		log:    log,
	}
}

// Allow implements Limiter
func (r *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	counter := fmt.Sprintf("rate_limit:%s:%s", r.scope, key)

	// Run Lua script atomically
	raw, err := r.script.Run(ctx, r.redis, []string{counter}, r.policy.Limit, r.policy.Window.Milliseconds()).Result()
	if err != nil {
		r.log.Error("rate limit check failed", "key", counter, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}
	ints := make([]int64, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result format")
		}
		ints[i] = n
	}

	result := &Result{
		Allowed:      ints[0] == 1,
		CurrentCount: ints[1],
		Limit:        ints[2],
		RetryAfter:   time.Duration(ints[3]) * time.Millisecond,
	}

	if !result.Allowed {
		r.log.Warn("rate limit exceeded",
			"key", counter,
			"current", result.CurrentCount,
			"limit", result.Limit,
			"retry_after", result.RetryAfter)
	}
	return result, nil
}

// New returns a Redis limiter when client is set and an in-process one
// otherwise. It returns nil when the policy is disabled.
func New(client *rediscommon.Client, scope string, policy Policy, log *logger.Logger) Limiter {
	if !policy.Enabled() {
		return nil
	}
	if client != nil {
		return NewRedisLimiter(client, scope, policy, log)
	}
	return NewLocalLimiter(policy)
}
