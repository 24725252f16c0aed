package cache

import (
	"crypto/tls"
	"time"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize    int
	PoolTimeout time.Duration
	IdleTimeout time.Duration

	// DefaultTTL applies to Set calls with a non-positive TTL.
	DefaultTTL time.Duration

	TLS *tls.Config

	SentinelEnabled bool
	SentinelMasters []string
	ClusterEnabled  bool

	// KeyPrefix namespaces every key written by this process.
	KeyPrefix string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
}

// DefaultRedisConfig returns a configuration with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
		DefaultTTL:   5 * time.Minute,
		KeyPrefix:    "resolution:",
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	}
}

// Validate checks the configuration for validity.
func (c *RedisConfig) Validate() error {
	if c.Host == "" {
		return ErrInvalidConfig("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidConfig("port must be between 1 and 65535")
	}
	if c.PoolSize <= 0 {
		return ErrInvalidConfig("pool_size must be greater than 0")
	}
	if c.DefaultTTL <= 0 {
		return ErrInvalidConfig("default_ttl must be greater than 0")
	}
	return nil
}
