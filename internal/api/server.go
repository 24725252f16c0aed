// Package api provides the HTTP decision surface of the resolution
// engine.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/authz-engine/resolution/internal/metrics"
)

// Config configures the HTTP server.
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Version      string
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the HTTP server for the decision API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
	config     Config
	ready      atomic.Bool
}

// NewServer wires the handler into a configured HTTP server. A nil
// metrics sink disables the /metrics endpoint.
func NewServer(cfg Config, handler *Handler, m metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(RequestID(), Logging(logger), Recovery(logger))
	if m != nil {
		router.Use(ActiveRequests(m))
	}

	s := &Server{
		router: router,
		logger: logger,
		config: cfg,
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}

	router.GET("/healthz", s.healthz)
	router.GET("/readyz", s.readyz)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.HTTPHandler()))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/check", handler.Check)
		v1.POST("/evaluate", handler.Evaluate)
		v1.POST("/context", handler.Context)
		v1.GET("/admin/resolution-chain", handler.ResolutionChain)
		v1.POST("/admin/invalidate", handler.Invalidate)
	}

	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// SetReady flips the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

func (s *Server) readyz(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "not ready"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.config.ListenAddr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.httpServer.Shutdown(ctx)
}
