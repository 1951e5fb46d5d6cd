package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

// Cache is a thin JSON read-through layer over redis. A nil *Cache is valid
// and behaves as a permanent miss, so callers do not branch on whether
// caching is configured. Entries expire by TTL only; nothing deletes them
// early, so readers may see results up to one TTL stale.
type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

// New connects to redis at addr. An empty addr returns a nil cache.
func New(ctx context.Context, addr, password string, db int, baseLog *logger.Logger) (*Cache, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{client: client, log: baseLog.With("component", "Cache")}, nil
}

// Get unmarshals the cached value into dest. The boolean reports a hit.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
