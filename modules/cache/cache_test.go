package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Integration tests require Redis running on localhost:6379 and are skipped
// otherwise.
const testRedisAddr = "localhost:6379"

// setupTestCache creates a cache instance for testing, with a cleanup
// function removing every key it touched.
func setupTestCache(t *testing.T, prefix string) (*Cache, func()) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	cleanupKeys(ctx, client, prefix+"*")
	cache := New(client, prefix, 5*time.Minute)

	cleanup := func() {
		cleanupKeys(ctx, client, prefix+"*")
		client.Close()
	}
	return cache, cleanup
}

func cleanupKeys(ctx context.Context, client *redis.Client, pattern string) {
	var cursor uint64
	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
}

func TestCache_SetGetDelete(t *testing.T) {
	cache, cleanup := setupTestCache(t, "test:roomchat:")
	defer cleanup()
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "history:room-1"); ok {
		t.Error("expected miss on empty cache")
	}

	if err := cache.Set(ctx, "history:room-1", []byte(`[{"message":"hi"}]`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	data, ok := cache.Get(ctx, "history:room-1")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if string(data) != `[{"message":"hi"}]` {
		t.Errorf("unexpected cached value %q", data)
	}

	if err := cache.Delete(ctx, "history:room-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := cache.Get(ctx, "history:room-1"); ok {
		t.Error("expected miss after Delete")
	}
}

func TestCache_Stats(t *testing.T) {
	cache, cleanup := setupTestCache(t, "test:roomchat:stats:")
	defer cleanup()
	ctx := context.Background()

	cache.Get(ctx, "missing")
	if err := cache.Set(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	cache.Get(ctx, "key")

	stats := cache.GetStats()
	if stats.Hits != 1 {
		t.Errorf("hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
	if stats.Sets != 1 {
		t.Errorf("sets = %d, want 1", stats.Sets)
	}
	if stats.TotalGets != 2 {
		t.Errorf("total gets = %d, want 2", stats.TotalGets)
	}
	if stats.HitRate != 50 {
		t.Errorf("hit rate = %v, want 50", stats.HitRate)
	}
}

func TestModule_DisabledWithoutAddress(t *testing.T) {
	m := NewModule("", "roomchat", time.Minute)

	if m.Cache() != nil {
		t.Error("expected nil cache when no address is configured")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	if status := m.Health(context.Background()); !status.Healthy || status.Message != "disabled" {
		t.Errorf("unexpected health status %+v", status)
	}
}
