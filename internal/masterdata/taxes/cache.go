package taxes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "gst:rates:version"

// Cache is a versioned Redis cache of rate histories per HSN/SAC code.
// Bumping the version orphans every entry, which then expires by TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) key(ctx context.Context, hsn string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("gst:rates:%s:%d", hsn, ver), nil
}

// Get loads cached rates; ok is false on a miss.
func (c *Cache) Get(ctx context.Context, hsn string) ([]Rate, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	key, err := c.key(ctx, hsn)
	if err != nil {
		return nil, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rates []Rate
	if err := json.Unmarshal(payload, &rates); err != nil {
		return nil, false, err
	}
	return rates, true, nil
}

// Set stores rates under the current version.
func (c *Cache) Set(ctx context.Context, hsn string, rates []Rate) error {
	if !c.enabled() {
		return nil
	}
	key, err := c.key(ctx, hsn)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates every cached history.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
