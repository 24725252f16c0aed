// Package main provides the entry point for the resolution server
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/authz-engine/resolution/internal/api"
	"github.com/authz-engine/resolution/internal/audit"
	"github.com/authz-engine/resolution/internal/cache"
	"github.com/authz-engine/resolution/internal/cel"
	"github.com/authz-engine/resolution/internal/config"
	"github.com/authz-engine/resolution/internal/directory"
	"github.com/authz-engine/resolution/internal/evaluator"
	"github.com/authz-engine/resolution/internal/metrics"
	"github.com/authz-engine/resolution/internal/policy"
	"github.com/authz-engine/resolution/internal/principal"
	"github.com/authz-engine/resolution/internal/roles"
	"github.com/authz-engine/resolution/pkg/types"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML configuration file")
		listenAddr  = flag.String("listen", "", "HTTP listen address (overrides config)")
		roleTable   = flag.String("role-table", "", "Role/permission table file (overrides config)")
		policyDir   = flag.String("policy-dir", "", "Policy directory (overrides config)")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("resolverd %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *roleTable != "" {
		cfg.Roles.TableFile = *roleTable
	}
	if *policyDir != "" {
		cfg.Policies.Dir = *policyDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := initLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting resolution server",
		zap.String("version", Version),
		zap.String("listen_addr", cfg.Server.ListenAddr),
	)

	// Role/permission table
	if cfg.Roles.TableFile == "" {
		logger.Fatal("No role table configured (roles.tableFile or -role-table)")
	}
	table, err := roles.NewTableFromFile(cfg.Roles.TableFile)
	if err != nil {
		logger.Fatal("Failed to load role table", zap.Error(err))
	}

	// Metrics
	var m metrics.Metrics = metrics.NewNoOpMetrics()
	if cfg.Metrics.Enabled {
		m = metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
	}

	// Cache layers
	resolutionCache := buildCache(cfg, logger)

	// Resolution pipeline
	resolver := roles.NewResolver(table, resolutionCache, logger)
	resolver.SetRoleTTL(cfg.Cache.RoleTTL)
	builder := principal.NewBuilder(resolver, resolutionCache, logger)
	builder.SetUserTTL(cfg.Cache.UserTTL)
	builder.SetMetrics(m)

	// Policies
	celEngine, err := cel.NewEngine()
	if err != nil {
		logger.Fatal("Failed to create CEL engine", zap.Error(err))
	}
	validator := policy.NewValidator(celEngine)
	loader := policy.NewLoader(validator, logger)

	var registry *policy.Registry
	if cfg.Policies.Dir != "" {
		pols, err := loader.LoadFromDirectory(cfg.Policies.Dir)
		if err != nil {
			logger.Fatal("Failed to load policies", zap.Error(err))
		}
		registry, err = policy.NewRegistry(pols)
		if err != nil {
			logger.Fatal("Failed to build policy registry", zap.Error(err))
		}
		logger.Info("Policies loaded", zap.Int("count", registry.Count()))
	} else {
		registry, _ = policy.NewRegistry(nil)
		logger.Warn("No policy directory configured; every policy evaluation will deny")
	}
	m.UpdatePolicyCount(registry.Count())

	// Audit
	auditLogger, dbHandle, err := buildAuditLogger(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize audit logging", zap.Error(err))
	}
	if dbHandle != nil {
		defer dbHandle.Close()
	}
	auditLogger.LogSystem(audit.EventTypeSystemStartup, "resolverd started", map[string]interface{}{
		"version": Version,
	})

	// Evaluator
	eval := evaluator.New(registry, celEngine, logger,
		evaluator.WithMetrics(m),
		evaluator.WithAuditLogger(auditLogger),
	)

	// Directory
	dir, err := buildDirectory(cfg, resolutionCache, logger)
	if err != nil {
		logger.Fatal("Failed to initialize directory", zap.Error(err))
	}

	// HTTP server
	handler := api.NewHandler(builder, eval, roles.NewChainBuilder(resolver), dir, logger)
	var serverMetrics metrics.Metrics
	if cfg.Metrics.Enabled {
		serverMetrics = m
	}
	srv := api.NewServer(api.Config{
		ListenAddr:   cfg.Server.ListenAddr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Version:      Version,
	}, handler, serverMetrics, logger)

	// Hot reload watchers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Roles.Watch {
		watcher, err := roles.NewTableWatcher(cfg.Roles.TableFile, table, logger, func(prev *types.RolePermissionTable, reloadErr error) {
			if reloadErr != nil {
				m.RecordPolicyReload("failure")
				return
			}
			// Drop cached role permission sets from both snapshots so
			// the reloaded table takes effect immediately.
			resolver.InvalidateTable(context.Background(), prev, table.Snapshot())
			m.RecordPolicyReload("success")
			auditLogger.LogSystem(audit.EventTypePolicyReload, "role table reloaded", nil)
		})
		if err != nil {
			logger.Fatal("Failed to watch role table", zap.Error(err))
		}
		if err := watcher.Watch(ctx); err != nil {
			logger.Fatal("Failed to start role table watcher", zap.Error(err))
		}
		defer watcher.Stop()
	}

	if cfg.Policies.Dir != "" && cfg.Policies.Watch {
		watcher, err := policy.NewFileWatcher(cfg.Policies.Dir, registry, loader, logger)
		if err != nil {
			logger.Fatal("Failed to watch policy directory", zap.Error(err))
		}
		if err := watcher.Watch(ctx); err != nil {
			logger.Fatal("Failed to start policy watcher", zap.Error(err))
		}
		defer watcher.Stop()

		go func() {
			for evt := range watcher.EventChan() {
				if evt.Error != nil {
					m.RecordPolicyReload("failure")
					continue
				}
				m.RecordPolicyReload("success")
				m.UpdatePolicyCount(registry.Count())
				auditLogger.LogSystem(audit.EventTypePolicyReload, "policies reloaded", map[string]interface{}{
					"policies": evt.Policies,
				})
			}
		}()
	}

	errChan := make(chan error, 1)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		errChan <- srv.Start()
	}()
	srv.SetReady(true)

	select {
	case err := <-errChan:
		if err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", zap.Error(err))
		}
	}

	auditLogger.LogSystem(audit.EventTypeSystemShutdown, "resolverd stopping", nil)
	if err := auditLogger.Close(); err != nil {
		logger.Error("Audit shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped successfully")
}

// buildCache assembles the cache stack: in-process LRU, optionally backed
// by Redis.
func buildCache(cfg *config.Config, logger *zap.Logger) cache.Cache {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewLRU(cfg.Cache.L1Size, cfg.Cache.L1TTL)
	}

	redisCfg := cache.DefaultRedisConfig()
	redisCfg.Password = cfg.Cache.Redis.Password
	redisCfg.DB = cfg.Cache.Redis.DB
	if cfg.Cache.Redis.KeyPrefix != "" {
		redisCfg.KeyPrefix = cfg.Cache.Redis.KeyPrefix
	}
	if len(cfg.Cache.Redis.Addrs) > 0 {
		host, port, err := net.SplitHostPort(cfg.Cache.Redis.Addrs[0])
		if err == nil {
			redisCfg.Host = host
			if p, perr := strconv.Atoi(port); perr == nil {
				redisCfg.Port = p
			}
		} else {
			redisCfg.Host = cfg.Cache.Redis.Addrs[0]
		}
	}
	switch cfg.Cache.Redis.Mode {
	case "sentinel":
		redisCfg.SentinelEnabled = true
		redisCfg.SentinelMasters = []string{cfg.Cache.Redis.Master}
	case "cluster":
		redisCfg.ClusterEnabled = true
	}

	return cache.NewHybridCache(&cache.HybridConfig{
		L1Capacity: cfg.Cache.L1Size,
		L1TTL:      cfg.Cache.L1TTL,
		L2Enabled:  true,
		L2Config:   redisCfg,
	}, logger)
}

// buildAuditLogger creates the audit logger, opening a database handle
// for the postgres destination. The handle is returned so main can close
// it on exit.
func buildAuditLogger(cfg *config.Config) (audit.Logger, *sql.DB, error) {
	auditCfg := audit.DefaultConfig()
	auditCfg.Enabled = cfg.Audit.Enabled
	if cfg.Audit.Type != "" {
		auditCfg.Type = cfg.Audit.Type
	}
	auditCfg.FilePath = cfg.Audit.FilePath
	if cfg.Audit.FileMaxSize > 0 {
		auditCfg.FileMaxSize = cfg.Audit.FileMaxSize
	}
	if cfg.Audit.FileMaxAge > 0 {
		auditCfg.FileMaxAge = cfg.Audit.FileMaxAge
	}
	if cfg.Audit.FileMaxBackups > 0 {
		auditCfg.FileMaxBackups = cfg.Audit.FileMaxBackups
	}

	var db *sql.DB
	if auditCfg.Enabled && auditCfg.Type == "postgres" {
		var err error
		db, err = sql.Open("postgres", cfg.Audit.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping audit database: %w", err)
		}
		auditCfg.DB = db
	}

	l, err := audit.NewLogger(&auditCfg)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}
	return l, db, nil
}

// buildDirectory selects the identity directory backend.
func buildDirectory(cfg *config.Config, c cache.Cache, logger *zap.Logger) (directory.Directory, error) {
	switch cfg.Directory.Type {
	case "", "none":
		return directory.Unconfigured(), nil
	case "memory":
		if cfg.Directory.SeedFile == "" {
			return directory.NewMemory(), nil
		}
		mem, err := directory.LoadSeedFile(cfg.Directory.SeedFile)
		if err != nil {
			return nil, err
		}
		return directory.NewCached(mem, c, logger), nil
	default:
		return nil, fmt.Errorf("unknown directory type %q", cfg.Directory.Type)
	}
}

// initLogger initializes the zap logger
func initLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
