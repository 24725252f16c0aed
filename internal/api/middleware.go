package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authz-engine/resolution/internal/audit"
	"github.com/authz-engine/resolution/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key for the request correlation ID.
const requestIDKey = "request_id"

// RequestID assigns a correlation ID to every request, honoring one
// supplied by the caller, and threads it into the request context so the
// audit trail can carry it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(audit.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logging logs one line per request.
func Logging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", requestID(c)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// ActiveRequests tracks the in-flight request gauge.
func ActiveRequests(m metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.IncActiveRequests()
		defer m.DecActiveRequests()
		c.Next()
	}
}

// Recovery converts panics into 500 responses.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", requestID(c)))
				c.AbortWithStatusJSON(500, ErrorResponse{Error: "internal error"})
			}
		}()
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
