package cache

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache implements Cache backed by a distributed Redis store. All
// operations are best-effort: failures are logged at debug level and
// reported to the caller as a miss, never as an error.
type RedisCache struct {
	client redis.UniversalClient
	config *RedisConfig
	logger *zap.Logger

	hits   uint64
	misses uint64
}

// NewRedisCache creates a Redis cache and verifies connectivity.
func NewRedisCache(config *RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch {
	case config.ClusterEnabled:
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        []string{net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port))},
			Password:     config.Password,
			PoolSize:     config.PoolSize,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			DialTimeout:  config.DialTimeout,
			TLSConfig:    config.TLS,
		})
	case config.SentinelEnabled && len(config.SentinelMasters) > 0:
		sentinelAddrs := make([]string, len(config.SentinelMasters))
		for i, master := range config.SentinelMasters {
			sentinelAddrs[i] = fmt.Sprintf("%s:%d", master, config.Port)
		}
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			SentinelAddrs: sentinelAddrs,
			MasterName:    "mymaster",
			Password:      config.Password,
			DB:            config.DB,
			PoolSize:      config.PoolSize,
			ReadTimeout:   config.ReadTimeout,
			WriteTimeout:  config.WriteTimeout,
			DialTimeout:   config.DialTimeout,
			TLSConfig:     config.TLS,
		})
	default:
		client = redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port)),
			Password:     config.Password,
			DB:           config.DB,
			PoolSize:     config.PoolSize,
			PoolTimeout:  config.PoolTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			DialTimeout:  config.DialTimeout,
			TLSConfig:    config.TLS,
		})
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, ErrConnectionFailed(err)
	}

	return newRedisCache(client, config, logger), nil
}

// NewRedisCacheWithClient wraps an existing client. Used in tests with
// redismock and by callers that manage their own connection.
func NewRedisCacheWithClient(client redis.UniversalClient, config *RedisConfig, logger *zap.Logger) *RedisCache {
	if config == nil {
		config = DefaultRedisConfig()
	}
	return newRedisCache(client, config, logger)
}

func newRedisCache(client redis.UniversalClient, config *RedisConfig, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		client: client,
		config: config,
		logger: logger,
	}
}

// Get retrieves a value; any failure is a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.config.KeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("redis get failed", zap.String("key", key), zap.Error(err))
		}
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	atomic.AddUint64(&c.hits, 1)
	return data, true
}

// Set stores a value with the entry's TTL; failures are swallowed.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	if err := c.client.Set(ctx, c.config.KeyPrefix+key, value, ttl).Err(); err != nil {
		c.logger.Debug("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes a key; failures are swallowed.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.config.KeyPrefix+key).Err(); err != nil {
		c.logger.Debug("redis del failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes every entry under the configured key prefix.
func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug("redis scan failed", zap.Error(err))
		return
	}

	if len(keys) > 0 {
		c.client.Del(ctx, keys...)
	}
}

// Stats returns cache statistics.
func (c *RedisCache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	size := 0
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if dbSize, err := c.client.DBSize(ctx).Result(); err == nil {
		size = int(dbSize)
	}

	return Stats{
		Size:    size,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
	}
}

// Close closes the underlying connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
