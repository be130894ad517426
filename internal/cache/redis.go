package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKey is the key the count snapshot is stored under.
	DefaultRedisKey = "jifijs:audit:count"

	// DefaultRedisTTL is the expiry applied to the stored snapshot, so stale
	// counts disappear when the application stops updating them.
	DefaultRedisTTL = 1 * time.Minute
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the connection URL, e.g. "redis://localhost:6379/0".
	URL string

	// Key overrides DefaultRedisKey.
	Key string

	// TTL overrides DefaultRedisTTL.
	TTL time.Duration
}

// RedisCache implements CountCache on Redis, for deployments where several
// instances share one record store.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultRedisTTL
	}

	slog.Info("redis count cache connected", "key", key, "ttl", ttl)

	return &RedisCache{client: client, key: key, ttl: ttl}, nil
}

// Get retrieves the cached snapshot from Redis.
func (c *RedisCache) Get(ctx context.Context) (*CountSnapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get count from redis: %w", err)
	}

	var snapshot CountSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse count from redis: %w", err)
	}
	return &snapshot, nil
}

// Set stores a snapshot in Redis with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, snapshot *CountSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal count: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set count in redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
