package cache

import (
	"context"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// Module provides caching services as a mono module. When no Redis address
// is configured the module runs disabled and Cache() returns nil; callers
// treat a nil cache as a pass-through to the store.
type Module struct {
	cache     *Cache
	client    *redis.Client
	redisAddr string
	prefix    string
	ttl       time.Duration
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new cache module. An empty redisAddr disables caching.
func NewModule(redisAddr, prefix string, ttl time.Duration) *Module {
	m := &Module{
		redisAddr: redisAddr,
		prefix:    prefix,
		ttl:       ttl,
	}
	if redisAddr != "" {
		m.client = redis.NewClient(&redis.Options{
			Addr:         redisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		m.cache = New(m.client, prefix, ttl)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Start verifies the Redis connection when caching is enabled.
func (m *Module) Start(ctx context.Context) error {
	if m.client == nil {
		log.Println("[cache] Caching disabled (no Redis address configured)")
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.client.Ping(pingCtx).Err(); err != nil {
		// History reads fall back to the store; the service degrades
		// rather than refusing to start.
		log.Printf("[cache] Redis unreachable at %s, running without cache: %v", m.redisAddr, err)
		m.cache = nil
		_ = m.client.Close()
		m.client = nil
		return nil
	}

	log.Printf("[cache] Connected to Redis at %s (prefix: %s, TTL: %s)", m.redisAddr, m.prefix, m.ttl)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[cache] Error closing Redis connection: %v", err)
			return err
		}
	}
	log.Println("[cache] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.cache == nil {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	if err := m.cache.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"stats": m.cache.GetStats()},
	}
}

// Cache returns the cache, or nil when caching is disabled.
func (m *Module) Cache() *Cache {
	return m.cache
}
