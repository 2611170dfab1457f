package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/seantiz/taskflow/internal/model"
)

// countingStore counts GetPipeline calls that reach the underlying store.
type countingStore struct {
	PipelineStore
	gets int
}

func (c *countingStore) GetPipeline(ctx context.Context, name string) (*model.PipelineDefinition, error) {
	c.gets++
	return c.PipelineStore.GetPipeline(ctx, name)
}

func newTestCache(t *testing.T) (*RedisPipelineCache, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	under := &countingStore{PipelineStore: newTestStore(t)}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewRedisPipelineCache(under, client, logger, WithCacheTTL(time.Minute)), under, mr
}

func TestRedisCacheReadThrough(t *testing.T) {
	cache, under, mr := newTestCache(t)
	ctx := context.Background()

	if err := cache.PutPipeline(ctx, &model.PipelineDefinition{Name: "p", Source: "v1"}); err != nil {
		t.Fatalf("PutPipeline: %v", err)
	}

	for i := 0; i < 3; i++ {
		def, err := cache.GetPipeline(ctx, "p")
		if err != nil {
			t.Fatalf("GetPipeline[%d]: %v", i, err)
		}
		if def.Source != "v1" {
			t.Errorf("Source = %q, want v1", def.Source)
		}
	}
	if under.gets != 1 {
		t.Errorf("underlying gets = %d, want 1", under.gets)
	}
	if !mr.Exists(defaultCachePrefix + "p") {
		t.Error("cache key not written")
	}
	if ttl := mr.TTL(defaultCachePrefix + "p"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}
}

func TestRedisCacheInvalidatesOnPut(t *testing.T) {
	cache, under, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.PutPipeline(ctx, &model.PipelineDefinition{Name: "p", Source: "v1"}); err != nil {
		t.Fatalf("PutPipeline v1: %v", err)
	}
	if _, err := cache.GetPipeline(ctx, "p"); err != nil {
		t.Fatalf("GetPipeline: %v", err)
	}
	if err := cache.PutPipeline(ctx, &model.PipelineDefinition{Name: "p", Source: "v2"}); err != nil {
		t.Fatalf("PutPipeline v2: %v", err)
	}

	def, err := cache.GetPipeline(ctx, "p")
	if err != nil {
		t.Fatalf("GetPipeline after put: %v", err)
	}
	if def.Source != "v2" {
		t.Errorf("Source = %q, want v2", def.Source)
	}
	if under.gets != 2 {
		t.Errorf("underlying gets = %d, want 2", under.gets)
	}
}

func TestRedisCacheDelete(t *testing.T) {
	cache, _, mr := newTestCache(t)
	ctx := context.Background()

	if err := cache.PutPipeline(ctx, &model.PipelineDefinition{Name: "p", Source: "v1"}); err != nil {
		t.Fatalf("PutPipeline: %v", err)
	}
	if _, err := cache.GetPipeline(ctx, "p"); err != nil {
		t.Fatalf("GetPipeline: %v", err)
	}
	if err := cache.DeletePipeline(ctx, "p"); err != nil {
		t.Fatalf("DeletePipeline: %v", err)
	}
	if mr.Exists(defaultCachePrefix + "p") {
		t.Error("cache key survived delete")
	}
	if _, err := cache.GetPipeline(ctx, "p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPipeline after delete error = %v, want ErrNotFound", err)
	}
}

func TestRedisCacheFallsBackWhenRedisDown(t *testing.T) {
	cache, under, mr := newTestCache(t)
	ctx := context.Background()

	if err := cache.PutPipeline(ctx, &model.PipelineDefinition{Name: "p", Source: "v1"}); err != nil {
		t.Fatalf("PutPipeline: %v", err)
	}
	mr.Close()

	def, err := cache.GetPipeline(ctx, "p")
	if err != nil {
		t.Fatalf("GetPipeline with redis down: %v", err)
	}
	if def.Source != "v1" || under.gets != 1 {
		t.Errorf("def = %+v, gets = %d", def, under.gets)
	}
}
