package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	settingsKey = "taskbot:settings:snapshot"
	lockPrefix  = "taskbot:lock:"
)

// Cache is a thin redis layer shared by all replicas: the engine settings
// snapshot and short-lived locks for background jobs.
type Cache struct {
	client *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// LoadSettings decodes the cached snapshot into dst. It reports false when
// nothing is cached.
func (c *Cache) LoadSettings(ctx context.Context, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, settingsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get settings snapshot: %w", err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode settings snapshot: %w", err)
	}

	return true, nil
}

func (c *Cache) StoreSettings(ctx context.Context, snapshot any, ttl time.Duration) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode settings snapshot: %w", err)
	}

	return c.client.Set(ctx, settingsKey, raw, ttl).Err()
}

func (c *Cache) InvalidateSettings(ctx context.Context) error {
	return c.client.Del(ctx, settingsKey).Err()
}

// TryLock acquires name for ttl. It returns false if another holder owns it.
func (c *Cache) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, lockPrefix+name, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}

	return ok, nil
}

func (c *Cache) Unlock(ctx context.Context, name string) error {
	return c.client.Del(ctx, lockPrefix+name).Err()
}
