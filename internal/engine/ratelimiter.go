package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// PublishLimiter throttles outbound publishes per owning system with a
// Redis sliding window, so a large dead-letter backlog can't hammer the
// ingestion endpoint. A limit of zero disables throttling.
type PublishLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	perSecond   int
	script      *redis.Script
}

// Atomic sliding window: drop entries outside the window, count what's
// left, admit and record the publish only while under the limit.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
else
    return 0
end
`)

func NewPublishLimiter(redisClient *redis.Client, perSecond int, logger *slog.Logger) *PublishLimiter {
	return &PublishLimiter{
		redisClient: redisClient,
		logger:      logger,
		perSecond:   perSecond,
		script:      slidingWindowScript,
	}
}

func limiterKey(source string) string {
	return fmt.Sprintf("pub:%s", source)
}

// Allow reports whether another publish for this owning system fits in the
// current window. Fails open: if Redis is down, throttling is lost but
// publishing continues.
func (pl *PublishLimiter) Allow(ctx context.Context, source string) bool {
	if pl.perSecond <= 0 {
		return true
	}

	now := time.Now().UnixMilli()
	window := int64(1000)
	member := fmt.Sprintf("%d:%d", now, time.Now().UnixNano()%10000)

	result, err := pl.script.Run(ctx, pl.redisClient, []string{limiterKey(source)},
		now, window, pl.perSecond, member,
	).Int64()
	if err != nil {
		pl.logger.Error("publish limiter script failed", "error", err, "source", source)
		return true
	}

	if result == 0 {
		pl.logger.Debug("publish rate limited", "source", source, "limit", pl.perSecond)
		return false
	}

	return true
}
