// Package config loads the resolverd process configuration from YAML
// with environment overrides for deployment-supplied secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full resolverd configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Cache     CacheConfig     `yaml:"cache"`
	Roles     RolesConfig     `yaml:"roles"`
	Policies  PoliciesConfig  `yaml:"policies"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Directory DirectoryConfig `yaml:"directory"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// CacheConfig configures the resolution cache layers.
type CacheConfig struct {
	L1Size  int           `yaml:"l1Size"`
	L1TTL   time.Duration `yaml:"l1Ttl"`
	UserTTL time.Duration `yaml:"userTtl"`
	RoleTTL time.Duration `yaml:"roleTtl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the optional Redis L2.
type RedisConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Mode      string   `yaml:"mode"` // standard, sentinel, cluster
	Addrs     []string `yaml:"addrs"`
	Master    string   `yaml:"master"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"keyPrefix"`
}

// RolesConfig points at the role/permission table.
type RolesConfig struct {
	TableFile string `yaml:"tableFile"`
	Watch     bool   `yaml:"watch"`
}

// PoliciesConfig points at the policy directory.
type PoliciesConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// AuditConfig configures decision auditing.
type AuditConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Type           string `yaml:"type"` // stdout, file, postgres
	FilePath       string `yaml:"filePath"`
	FileMaxSize    int    `yaml:"fileMaxSize"`
	FileMaxAge     int    `yaml:"fileMaxAge"`
	FileMaxBackups int    `yaml:"fileMaxBackups"`
	PostgresDSN    string `yaml:"postgresDsn"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DirectoryConfig selects the identity directory backend.
type DirectoryConfig struct {
	Type     string `yaml:"type"` // none, memory
	SeedFile string `yaml:"seedFile"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Cache: CacheConfig{
			L1Size:  10000,
			L1TTL:   time.Minute,
			UserTTL: 5 * time.Minute,
			RoleTTL: time.Hour,
			Redis:   RedisConfig{Mode: "standard", KeyPrefix: "resolution:"},
		},
		Roles:    RolesConfig{Watch: true},
		Policies: PoliciesConfig{Watch: true},
		Audit: AuditConfig{
			Enabled:        true,
			Type:           "stdout",
			FileMaxSize:    100,
			FileMaxAge:     30,
			FileMaxBackups: 10,
		},
		Metrics:   MetricsConfig{Enabled: true, Namespace: "resolution"},
		Directory: DirectoryConfig{Type: "none"},
	}
}

// Load reads the YAML file, applies environment overrides and validates.
// An empty path yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv merges deployment-supplied overrides. Secrets in particular
// arrive through the environment rather than the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("RESOLVERD_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("RESOLVERD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RESOLVERD_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Enabled = true
		c.Cache.Redis.Addrs = []string{v}
	}
	if v := os.Getenv("RESOLVERD_REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("RESOLVERD_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Cache.Redis.DB = db
		}
	}
	if v := os.Getenv("RESOLVERD_AUDIT_POSTGRES_DSN"); v != "" {
		c.Audit.PostgresDSN = v
	}
	if v := os.Getenv("RESOLVERD_ROLE_TABLE"); v != "" {
		c.Roles.TableFile = v
	}
	if v := os.Getenv("RESOLVERD_POLICY_DIR"); v != "" {
		c.Policies.Dir = v
	}
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listenAddr is required")
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q is not json or console", c.Log.Format)
	}

	if c.Cache.Redis.Enabled && len(c.Cache.Redis.Addrs) == 0 {
		return fmt.Errorf("cache.redis.addrs is required when redis is enabled")
	}

	switch c.Audit.Type {
	case "", "stdout", "file", "postgres":
	default:
		return fmt.Errorf("audit.type %q is not stdout, file, or postgres", c.Audit.Type)
	}
	if c.Audit.Enabled && c.Audit.Type == "file" && c.Audit.FilePath == "" {
		return fmt.Errorf("audit.filePath is required for file audit output")
	}
	if c.Audit.Enabled && c.Audit.Type == "postgres" && c.Audit.PostgresDSN == "" {
		return fmt.Errorf("audit.postgresDsn is required for postgres audit output")
	}

	switch c.Directory.Type {
	case "", "none", "memory":
	default:
		return fmt.Errorf("directory.type %q is not none or memory", c.Directory.Type)
	}

	return nil
}
