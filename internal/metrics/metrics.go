// Package metrics provides observability for the resolution engine
package metrics

import (
	"net/http"
	"time"
)

// Metrics provides observability for the resolution engine
type Metrics interface {
	// Decision metrics
	RecordDecision(effect, category string, duration time.Duration)
	RecordPermissionCheck(effect string)
	IncActiveRequests()
	DecActiveRequests()

	// Resolution metrics
	RecordContextBuild(duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()

	// Policy lifecycle metrics
	RecordPolicyReload(status string)
	UpdatePolicyCount(count int)

	// HTTP handler for Prometheus scraping
	HTTPHandler() http.Handler
}

// NoOpMetrics provides a no-op implementation for testing/disabled monitoring
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new no-op metrics instance
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) RecordDecision(effect, category string, duration time.Duration) {}
func (n *NoOpMetrics) RecordPermissionCheck(effect string)                            {}
func (n *NoOpMetrics) IncActiveRequests()                                             {}
func (n *NoOpMetrics) DecActiveRequests()                                             {}
func (n *NoOpMetrics) RecordContextBuild(duration time.Duration)                      {}
func (n *NoOpMetrics) RecordCacheHit()                                                {}
func (n *NoOpMetrics) RecordCacheMiss()                                               {}
func (n *NoOpMetrics) RecordPolicyReload(status string)                               {}
func (n *NoOpMetrics) UpdatePolicyCount(count int)                                    {}

func (n *NoOpMetrics) HTTPHandler() http.Handler {
	return http.NotFoundHandler()
}
