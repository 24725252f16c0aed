package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Logger records audit events without blocking the decision path.
type Logger interface {
	// LogDecision records the outcome of a policy evaluation or
	// permission check.
	LogDecision(ctx context.Context, event *DecisionEvent)

	// LogSystem records a lifecycle event such as a policy reload.
	LogSystem(eventType, message string, data map[string]interface{})

	// Flush writes all buffered events.
	Flush() error

	// Close flushes remaining events and stops the logger.
	Close() error
}

// Config for the audit logger.
type Config struct {
	// Enabled turns audit logging on.
	Enabled bool

	// Type selects the destination: stdout, file or postgres.
	Type string

	// File output settings.
	FilePath       string
	FileMaxSize    int // MB
	FileMaxAge     int // days
	FileMaxBackups int

	// DB is required for the postgres destination.
	DB *sql.DB

	// BufferSize is the ring buffer capacity (default 1000).
	BufferSize int

	// FlushInterval is the background flush period (default 100ms).
	FlushInterval time.Duration
}

// DefaultConfig returns the stdout configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Type:           "stdout",
		BufferSize:     1000,
		FlushInterval:  100 * time.Millisecond,
		FileMaxSize:    100,
		FileMaxAge:     30,
		FileMaxBackups: 10,
	}
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Type {
	case "stdout":
	case "file":
		if c.FilePath == "" {
			return fmt.Errorf("file path is required for file output")
		}
	case "postgres":
		if c.DB == nil {
			return fmt.Errorf("database handle is required for postgres output")
		}
	default:
		return fmt.Errorf("invalid audit type: %s (must be stdout, file, or postgres)", c.Type)
	}

	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 100 * time.Millisecond
	}

	return nil
}

// NewLogger creates an audit logger for the configured destination.
func NewLogger(cfg *Config) (Logger, error) {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audit config: %w", err)
	}

	if !cfg.Enabled {
		return &noopLogger{}, nil
	}

	var (
		writer Writer
		err    error
	)
	switch cfg.Type {
	case "stdout":
		writer = NewStdoutWriter()
	case "file":
		writer, err = NewFileWriter(cfg.FilePath, cfg.FileMaxSize, cfg.FileMaxAge, cfg.FileMaxBackups)
	case "postgres":
		writer, err = NewPostgresWriter(cfg.DB)
	}
	if err != nil {
		return nil, err
	}

	return newAsyncLogger(writer, *cfg), nil
}

// asyncLogger buffers events in a ring and flushes them from a
// background goroutine. Overflow drops the oldest event.
type asyncLogger struct {
	writer Writer

	buffer []interface{}
	size   int
	head   int
	tail   int
	full   bool
	mu     sync.Mutex

	flushCh chan struct{}
	doneCh  chan struct{}
	stopped bool
}

func newAsyncLogger(writer Writer, cfg Config) *asyncLogger {
	l := &asyncLogger{
		writer:  writer,
		buffer:  make([]interface{}, cfg.BufferSize),
		size:    cfg.BufferSize,
		flushCh: make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
	}

	go l.run(cfg.FlushInterval)

	return l
}

func (l *asyncLogger) LogDecision(ctx context.Context, event *DecisionEvent) {
	if event.EventID == "" {
		event.EventID = generateEventID()
	}
	if event.EventType == "" {
		event.EventType = EventTypeDecision
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestIDFromContext(ctx)
	}

	l.enqueue(event)
}

func (l *asyncLogger) LogSystem(eventType, message string, data map[string]interface{}) {
	l.enqueue(&SystemEvent{
		EventID:   generateEventID(),
		EventType: eventType,
		Timestamp: time.Now(),
		Message:   message,
		Data:      data,
	})
}

func (l *asyncLogger) enqueue(event interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}

	l.buffer[l.tail] = event
	l.tail = (l.tail + 1) % l.size
	if l.full {
		l.head = l.tail
	}
	l.full = l.tail == l.head

	select {
	case l.flushCh <- struct{}{}:
	default:
	}
}

func (l *asyncLogger) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = l.Flush()
		case <-l.flushCh:
			_ = l.Flush()
		case <-l.doneCh:
			return
		}
	}
}

func (l *asyncLogger) Flush() error {
	l.mu.Lock()
	var pending []interface{}
	for l.head != l.tail || l.full {
		pending = append(pending, l.buffer[l.head])
		l.buffer[l.head] = nil
		l.head = (l.head + 1) % l.size
		l.full = false
	}
	l.mu.Unlock()

	var firstErr error
	for _, event := range pending {
		if err := l.writer.Write(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (l *asyncLogger) Close() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	l.mu.Unlock()

	close(l.doneCh)

	if err := l.Flush(); err != nil {
		return err
	}

	return l.writer.Close()
}

// noopLogger discards all events.
type noopLogger struct{}

func (noopLogger) LogDecision(context.Context, *DecisionEvent)      {}
func (noopLogger) LogSystem(string, string, map[string]interface{}) {}
func (noopLogger) Flush() error                                     { return nil }
func (noopLogger) Close() error                                     { return nil }

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return noopLogger{}
}

type contextKey string

// RequestIDKey carries the request correlation ID through contexts.
const RequestIDKey contextKey = "audit.request_id"

// WithRequestID attaches a request ID to the context for correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
