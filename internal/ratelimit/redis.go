package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkScript implements the sliding window over two per-window counters:
// the previous window's count is weighted (permille) by how much of it still
// overlaps the window ending now. Read, compare and increment run in one
// script, so concurrent turns from the same sender never observe a
// half-applied window.
var checkScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local prev_permille = tonumber(ARGV[3])
local curr = tonumber(redis.call('GET', KEYS[1]) or '0')
local prev = tonumber(redis.call('GET', KEYS[2]) or '0')
local weighted = curr + (prev * prev_permille) / 1000
if weighted >= limit then
  return {0, curr, prev}
end
curr = redis.call('INCR', KEYS[1])
if curr == 1 then
  redis.call('PEXPIRE', KEYS[1], window_ms * 2)
end
return {1, curr, prev}
`)

// RedisLimiter is a sliding-window limiter backed by a shared Redis instance.
type RedisLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, now: time.Now}
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func (l *RedisLimiter) Check(ctx context.Context, tenantID, identifier string, policy Policy) (Result, error) {
	key := bucketKey(tenantID, identifier, policy)
	now := l.now()
	windowMs := policy.Window.Milliseconds()
	windowIdx := now.UnixMilli() / windowMs
	elapsedMs := now.UnixMilli() - windowIdx*windowMs
	prevPermille := (windowMs - elapsedMs) * 1000 / windowMs

	currKey := fmt.Sprintf("%s:%d", key, windowIdx)
	prevKey := fmt.Sprintf("%s:%d", key, windowIdx-1)

	vals, err := checkScript.Run(ctx, l.rdb, []string{currKey, prevKey},
		policy.MaxRequests, windowMs, prevPermille).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit check: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("ratelimit check: unexpected script reply")
	}

	allowed := vals[0] == 1
	weighted := float64(vals[1]) + float64(vals[2])*float64(prevPermille)/1000
	resetAt := time.UnixMilli((windowIdx + 1) * windowMs)

	if !allowed {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	remaining := policy.MaxRequests - int(weighted)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
