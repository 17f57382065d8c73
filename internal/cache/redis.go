package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

const keyPrefix = "mediaingest:classification:"

// RedisStore keeps one key per fingerprint. Entries never expire.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis parses a redis:// URL and verifies the server answers
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) key(fingerprint string) string {
	return keyPrefix + fingerprint
}

func (r *RedisStore) Get(ctx context.Context, fingerprint string) (models.ClassificationResult, bool, error) {
	var result models.ClassificationResult

	data, err := r.client.Get(ctx, r.key(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return result, false, nil
		}
		return result, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, false, fmt.Errorf("failed to decode cache entry %s: %w", fingerprint, err)
	}
	return result, true, nil
}

func (r *RedisStore) Put(ctx context.Context, fingerprint string, result models.ClassificationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := r.client.Set(ctx, r.key(fingerprint), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (r *RedisStore) Close() error {
	return r.client.Close()
}
