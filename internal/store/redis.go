package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seantiz/taskflow/internal/model"
)

const defaultCachePrefix = "taskflow:pipeline:"

// Compile-time interface satisfaction check.
var _ PipelineStore = (*RedisPipelineCache)(nil)

// RedisPipelineCache is a read-through cache of pipeline definitions in front
// of another PipelineStore. Writes go to the underlying store first and then
// invalidate the cached entry. Cache failures are logged and fall back to the
// underlying store.
type RedisPipelineCache struct {
	next   PipelineStore
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOption configures a RedisPipelineCache.
type CacheOption func(*RedisPipelineCache)

// WithCacheTTL sets the expiration of cached definitions. Zero disables expiry.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *RedisPipelineCache) {
		c.ttl = ttl
	}
}

// WithCachePrefix sets the Redis key prefix.
func WithCachePrefix(prefix string) CacheOption {
	return func(c *RedisPipelineCache) {
		c.prefix = prefix
	}
}

// NewRedisPipelineCache wraps next with a cache stored through client.
func NewRedisPipelineCache(next PipelineStore, client *redis.Client, logger *slog.Logger, opts ...CacheOption) *RedisPipelineCache {
	c := &RedisPipelineCache{
		next:   next,
		client: client,
		prefix: defaultCachePrefix,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisPipelineCache) key(name string) string {
	return c.prefix + name
}

// GetPipeline returns the cached definition or loads and caches it.
func (c *RedisPipelineCache) GetPipeline(ctx context.Context, name string) (*model.PipelineDefinition, error) {
	data, err := c.client.Get(ctx, c.key(name)).Bytes()
	switch {
	case err == nil:
		var def model.PipelineDefinition
		if err := json.Unmarshal(data, &def); err == nil {
			return &def, nil
		}
		c.logger.Warn("discarding corrupt cached pipeline", "pipeline", name)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("pipeline cache read failed", "pipeline", name, "error", err)
	}

	def, err := c.next.GetPipeline(ctx, name)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(def); err == nil {
		if err := c.client.Set(ctx, c.key(name), data, c.ttl).Err(); err != nil {
			c.logger.Warn("pipeline cache write failed", "pipeline", name, "error", err)
		}
	}
	return def, nil
}

// PutPipeline stores def and invalidates its cache entry.
func (c *RedisPipelineCache) PutPipeline(ctx context.Context, def *model.PipelineDefinition) error {
	if err := c.next.PutPipeline(ctx, def); err != nil {
		return err
	}
	c.invalidate(ctx, def.Name)
	return nil
}

// ListPipelines is served by the underlying store.
func (c *RedisPipelineCache) ListPipelines(ctx context.Context) ([]*model.PipelineDefinition, error) {
	return c.next.ListPipelines(ctx)
}

// DeletePipeline removes the definition and its cache entry.
func (c *RedisPipelineCache) DeletePipeline(ctx context.Context, name string) error {
	err := c.next.DeletePipeline(ctx, name)
	c.invalidate(ctx, name)
	return err
}

func (c *RedisPipelineCache) invalidate(ctx context.Context, name string) {
	if err := c.client.Del(ctx, c.key(name)).Err(); err != nil {
		c.logger.Warn("pipeline cache invalidation failed", "pipeline", name, "error", err)
	}
}

// NewRedisClient creates a client for addr and verifies connectivity.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
