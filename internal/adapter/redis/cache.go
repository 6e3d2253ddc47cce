// Package redis caches served forecast windows in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "solar-outlook:window:"

// WindowCache implements reconcile.WindowCache. Entries expire after ttl and
// are dropped early by Invalidate after every write cycle.
type WindowCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewWindowCache wraps an existing client.
func NewWindowCache(client goredis.UniversalClient, ttl time.Duration) *WindowCache {
	return &WindowCache{client: client, ttl: ttl}
}

// NewClient connects to addr and checks the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Get returns the cached window for key.
func (c *WindowCache) Get(ctx context.Context, key string) (domain.Window, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Window{}, false, nil
	}
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("get %s: %w", key, err)
	}

	var w domain.Window
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.Window{}, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return w, true, nil
}

// Set stores w under key for the configured TTL.
func (c *WindowCache) Set(ctx context.Context, key string, w domain.Window) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Invalidate removes every cached window.
func (c *WindowCache) Invalidate(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached windows: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cached windows: %w", err)
	}
	return nil
}
