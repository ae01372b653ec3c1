package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EnvelopeLease grants at-most-one in-flight publish attempt per envelope
// id, so two overlapping batch invocations never double-publish the same
// entry. Leases expire on their own if a holder dies mid-attempt.
type EnvelopeLease struct {
	redisClient *redis.Client
	logger      *slog.Logger
	ttl         time.Duration
}

// Lua script for a value-checked release: only the holder that acquired the
// lease may delete it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

func NewEnvelopeLease(redisClient *redis.Client, logger *slog.Logger) *EnvelopeLease {
	return &EnvelopeLease{
		redisClient: redisClient,
		logger:      logger,
		ttl:         30 * time.Second,
	}
}

func leaseKey(envelopeID string) string {
	return fmt.Sprintf("lease:%s", envelopeID)
}

// Acquire claims the envelope for one publish attempt. Returns a release
// token and whether the claim succeeded. A Redis failure denies the claim:
// without the lease guarantee it is safer to skip the entry until the next
// batch.
func (l *EnvelopeLease) Acquire(ctx context.Context, envelopeID string) (string, bool) {
	token := uuid.NewString()

	ok, err := l.redisClient.SetNX(ctx, leaseKey(envelopeID), token, l.ttl).Result()
	if err != nil {
		l.logger.Error("lease acquire failed", "error", err, "envelope_id", envelopeID)
		return "", false
	}
	return token, ok
}

// Release frees the envelope's lease if token still holds it.
func (l *EnvelopeLease) Release(ctx context.Context, envelopeID, token string) {
	_, err := releaseScript.Run(ctx, l.redisClient, []string{leaseKey(envelopeID)}, token).Result()
	if err != nil && err != redis.Nil {
		l.logger.Error("lease release failed", "error", err, "envelope_id", envelopeID)
	}
}
