package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if the caller still holds it, so a
// step that overran its TTL cannot release a lease re-acquired by another
// writer.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements the single-writer-per-job lease with SET NX PX on a
// per-job key. Only one step execution may mutate a given job at a time;
// distinct jobs are fully independent.
type RedisLocker struct {
	redis *redis.Client
}

func NewRedisLocker(redisClient *redis.Client) *RedisLocker {
	return &RedisLocker{redis: redisClient}
}

func leaseKey(jobID string) string { return fmt.Sprintf("lease:job:%s", jobID) }

func (l *RedisLocker) Acquire(ctx context.Context, jobID string, ttl time.Duration) (func(), bool, error) {
	token := uuid.New().String()
	ok, err := l.redis.SetNX(ctx, leaseKey(jobID), token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Release on a fresh context: the step's context may already be done.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.redis, []string{leaseKey(jobID)}, token).Err(); err != nil && err != redis.Nil {
			log.Printf("Failed to release job lease %s: %v", jobID, err)
		}
	}
	return release, true, nil
}
