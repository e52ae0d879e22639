package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "confirmation:job:"

// JobGuard records processed message ids so a redelivered job is not run twice.
type JobGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewJobGuard(rdb *redis.Client, ttl time.Duration) *JobGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JobGuard{rdb: rdb, prefix: defaultPrefix, ttl: ttl}
}

func (g *JobGuard) key(messageID string) string { return g.prefix + messageID }

// Acquire returns true when messageID was not seen before within the TTL.
func (g *JobGuard) Acquire(ctx context.Context, messageID string) (bool, error) {
	return g.rdb.SetNX(ctx, g.key(messageID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
}

// Release forgets messageID so a retried delivery can run again.
func (g *JobGuard) Release(ctx context.Context, messageID string) error {
	return g.rdb.Del(ctx, g.key(messageID)).Err()
}
