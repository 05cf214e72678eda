package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPollInterval = 250 * time.Millisecond

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock on a single Redis key per lock name.
type Redis struct {
	client       *redis.Client
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{
		client:       client,
		prefix:       prefix,
		ttl:          ttl,
		pollInterval: defaultPollInterval,
		logger:       logger,
	}
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Acquire polls until the key is free or ctx is done.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	name := r.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", name, err)
		}
		if ok {
			return r.releaser(name, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Redis) releaser(name, token string) func() {
	return func() {
		// The run's ctx may already be cancelled; release on a fresh one.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := releaseScript.Run(ctx, r.client, []string{name}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.Warn("failed to release lock", "lock", name, "error", err)
		}
	}
}
