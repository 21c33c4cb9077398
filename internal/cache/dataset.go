package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keys for the two parsed datasets.
const (
	CutoffKey  = "dataset:cutoffs"
	VacancyKey = "dataset:vacancies"

	// DefaultTTL bounds how long a parsed dataset is served without
	// re-fetching the source spreadsheet.
	DefaultTTL = 15 * time.Minute
)

// DatasetCache stores parsed datasets between spreadsheet fetches. Using an
// interface keeps the dataset service testable and the cache optional.
type DatasetCache interface {
	// Get unmarshals the cached value for key into dest. The bool reports
	// whether the key was present.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set marshals value and stores it under key with the configured TTL.
	Set(ctx context.Context, key string, value interface{}) error
}

// RedisDatasetCache implements DatasetCache on a shared Redis client.
type RedisDatasetCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDatasetCache creates a DatasetCache backed by Redis.
func NewDatasetCache(client *redis.Client, ttl time.Duration) *RedisDatasetCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDatasetCache{client: client, ttl: ttl}
}

func (c *RedisDatasetCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get cached dataset: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode cached dataset: %w", err)
	}
	return true, nil
}

func (c *RedisDatasetCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache dataset: %w", err)
	}
	return nil
}
