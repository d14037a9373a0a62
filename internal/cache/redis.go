package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// New connects to Redis using a URL (redis://host:port/db).
func New(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info().Msg("Redis connection established")
	return &Redis{Client: client}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.Client.Close()
}

// Health checks if Redis is reachable.
func (r *Redis) Health(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// GetString fetches a string value, returning ("", false) on miss.
// Redis errors are treated as misses so callers fall through to the
// source of truth.
func (r *Redis) GetString(ctx context.Context, key string) (string, bool) {
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis get failed")
		return "", false
	}
	return val, true
}

// SetString stores a string value with a TTL, best effort.
func (r *Redis) SetString(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis set failed")
	}
}

// Delete removes a key, best effort.
func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.Client.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis delete failed")
	}
}
