package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configYAML = `
server:
  listenAddr: ":9090"
  shutdownTimeout: 10s
log:
  level: debug
  format: console
cache:
  l1Size: 500
  userTtl: 2m
  redis:
    enabled: true
    addrs: ["localhost:6379"]
    keyPrefix: "test:"
roles:
  tableFile: /etc/resolverd/roles.yaml
policies:
  dir: /etc/resolverd/policies
audit:
  enabled: true
  type: file
  filePath: /var/log/resolverd/audit.log
directory:
  type: memory
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, time.Hour, cfg.Cache.RoleTTL)
	assert.Equal(t, "stdout", cfg.Audit.Type)
	assert.False(t, cfg.Cache.Redis.Enabled)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, configYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 500, cfg.Cache.L1Size)
	assert.Equal(t, 2*time.Minute, cfg.Cache.UserTTL)
	assert.True(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Cache.Redis.Addrs)
	assert.Equal(t, "/etc/resolverd/roles.yaml", cfg.Roles.TableFile)
	assert.Equal(t, "memory", cfg.Directory.Type)

	// Unset fields keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RESOLVERD_LISTEN_ADDR", ":7070")
	t.Setenv("RESOLVERD_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("RESOLVERD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, []string{"redis.internal:6379"}, cfg.Cache.Redis.Addrs)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"redis without addrs", func(c *Config) { c.Cache.Redis.Enabled = true }},
		{"file audit without path", func(c *Config) { c.Audit.Type = "file" }},
		{"postgres audit without dsn", func(c *Config) { c.Audit.Type = "postgres" }},
		{"bad audit type", func(c *Config) { c.Audit.Type = "kafka" }},
		{"bad directory type", func(c *Config) { c.Directory.Type = "ldap" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
