package cache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// HybridCache layers an in-process LRU (L1) over Redis (L2). L1 serves hot
// entries, L2 makes resolution results visible across instances. L2 hits
// are promoted into L1 with a bounded TTL.
type HybridCache struct {
	l1 *LRU
	l2 *RedisCache

	// l1MaxTTL bounds how long a promoted or written entry may live in L1,
	// so a long role-permission TTL does not pin stale data locally after
	// another instance invalidates L2.
	l1MaxTTL time.Duration

	hits   uint64
	misses uint64
	l1Hits uint64
	l2Hits uint64
}

// HybridConfig contains configuration for the hybrid cache.
type HybridConfig struct {
	L1Capacity int
	L1TTL      time.Duration

	L2Enabled bool
	L2Config  *RedisConfig
}

// DefaultHybridConfig returns a configuration with sensible defaults.
func DefaultHybridConfig() *HybridConfig {
	return &HybridConfig{
		L1Capacity: 10000,
		L1TTL:      time.Minute,
		L2Enabled:  true,
		L2Config:   DefaultRedisConfig(),
	}
}

// NewHybridCache creates a hybrid cache. If Redis is unreachable the cache
// falls back to L1 only; a distributed cache is a speed-up, not a
// requirement.
func NewHybridCache(config *HybridConfig, logger *zap.Logger) *HybridCache {
	if config == nil {
		config = DefaultHybridConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var l2 *RedisCache
	if config.L2Enabled {
		var err error
		l2, err = NewRedisCache(config.L2Config, logger)
		if err != nil {
			logger.Warn("redis unavailable, falling back to local cache only", zap.Error(err))
			l2 = nil
		}
	}

	return &HybridCache{
		l1:       NewLRU(config.L1Capacity, config.L1TTL),
		l2:       l2,
		l1MaxTTL: config.L1TTL,
	}
}

// Get checks L1 first, then L2, promoting L2 hits.
func (c *HybridCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := c.l1.Get(ctx, key); ok {
		atomic.AddUint64(&c.hits, 1)
		atomic.AddUint64(&c.l1Hits, 1)
		return value, true
	}

	if c.l2 != nil {
		if value, ok := c.l2.Get(ctx, key); ok {
			c.l1.Set(ctx, key, value, c.l1MaxTTL)
			atomic.AddUint64(&c.hits, 1)
			atomic.AddUint64(&c.l2Hits, 1)
			return value, true
		}
	}

	atomic.AddUint64(&c.misses, 1)
	return nil, false
}

// Set writes through to both layers. L1 gets the entry TTL capped at the
// configured L1 bound.
func (c *HybridCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	l1TTL := ttl
	if l1TTL <= 0 || l1TTL > c.l1MaxTTL {
		l1TTL = c.l1MaxTTL
	}
	c.l1.Set(ctx, key, value, l1TTL)

	if c.l2 != nil {
		c.l2.Set(ctx, key, value, ttl)
	}
}

// Delete removes a key from both layers.
func (c *HybridCache) Delete(ctx context.Context, key string) {
	c.l1.Delete(ctx, key)
	if c.l2 != nil {
		c.l2.Delete(ctx, key)
	}
}

// Clear removes all entries from both layers.
func (c *HybridCache) Clear(ctx context.Context) {
	c.l1.Clear(ctx)
	if c.l2 != nil {
		c.l2.Clear(ctx)
	}
}

// Stats returns combined statistics.
func (c *HybridCache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	size := c.l1.Stats().Size
	if c.l2 != nil {
		size += c.l2.Stats().Size
	}

	return Stats{
		Size:    size,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
	}
}

// LayerStats reports per-layer hit counters for diagnostics.
func (c *HybridCache) LayerStats() (l1Hits, l2Hits uint64, l2Enabled bool) {
	return atomic.LoadUint64(&c.l1Hits), atomic.LoadUint64(&c.l2Hits), c.l2 != nil
}

// Close releases the L2 connection if present.
func (c *HybridCache) Close() error {
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
