// Package ratelimit implements a distributed token-bucket limiter on
// Redis. The bucket state and the refill-and-take step live in one Lua
// script so concurrent callers cannot double-spend tokens.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyTTL = 10 * time.Minute

// RedisLimiter is a token-bucket limiter shared across instances.
type RedisLimiter struct {
	client *redis.Client
	rate   float64
	burst  float64
	script *redis.Script
}

// New builds a limiter that refills rate tokens per second up to burst.
func New(client *redis.Client, rate, burst float64) *RedisLimiter {
	const script = `
		local key = KEYS[1]
		local rate = tonumber(ARGV[1])
		local capacity = tonumber(ARGV[2])
		local now = tonumber(ARGV[3])
		local expire_seconds = math.ceil(tonumber(ARGV[4]))

		local bucket = redis.call("HGETALL", key)
		local tokens
		local last_refill

		if #bucket == 0 then
			tokens = capacity
			last_refill = now
		else
			for i = 1, #bucket, 2 do
				if bucket[i] == "tokens" then
					tokens = tonumber(bucket[i+1])
				elseif bucket[i] == "last_refill" then
					last_refill = tonumber(bucket[i+1])
				end
			end

			tokens = tokens + (now - last_refill) * rate
			last_refill = now
			if tokens > capacity then
				tokens = capacity
			end
		end

		if tokens >= 1 then
			tokens = tokens - 1
			redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
			redis.call("EXPIRE", key, expire_seconds)
			return 1
		end
		redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
		redis.call("EXPIRE", key, expire_seconds)
		return 0
	`
	return &RedisLimiter{
		client: client,
		rate:   rate,
		burst:  burst,
		script: redis.NewScript(script),
	}
}

// Allow reports whether one more request from the identifier may proceed.
func (l *RedisLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := "certreg:ratelimit:" + identifier
	now := float64(time.Now().UnixNano()) / 1e9

	result, err := l.script.Run(ctx, l.client, []string{key},
		l.rate, l.burst, now, keyTTL.Seconds()).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return result == int64(1), nil
}
