package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanCount is the SCAN batch hint used for pattern deletion.
const scanCount = 100

// RedisStore is a Store backed by Redis. Tags are kept as sets of keys.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client.
// The event stream shares it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

// GetMany implements Store with a single MGET.
func (s *RedisStore) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = []byte(str)
		}
	}
	return out, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Exists implements Store.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// SetTagged implements TagIndexer. Tag sets live at least as long as their
// longest-lived member.
func (s *RedisStore) SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tagKeys []string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		for _, tk := range tagKeys {
			pipe.SAdd(ctx, tk, key)
			if ttl > 0 {
				pipe.ExpireNX(ctx, tk, ttl)
				pipe.ExpireGT(ctx, tk, ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis tagged set failed: %w", err)
	}
	return nil
}

// DeleteTagged implements TagIndexer.
func (s *RedisStore) DeleteTagged(ctx context.Context, tagKeys []string) (int, error) {
	if len(tagKeys) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{})
	for _, tk := range tagKeys {
		members, err := s.client.SMembers(ctx, tk).Result()
		if err != nil {
			return 0, fmt.Errorf("redis smembers failed: %w", err)
		}
		for _, m := range members {
			seen[m] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen)+len(tagKeys))
	for k := range seen {
		keys = append(keys, k)
	}
	keys = append(keys, tagKeys...)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("redis del failed: %w", err)
	}
	return len(seen), nil
}

// DeletePattern implements PatternDeleter with a SCAN loop.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var deleted int
	var cursor uint64

	for {
		var keys []string
		var err error

		keys, cursor, err = s.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis del failed: %w", err)
			}
			deleted += int(n)
		}

		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
