package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Writer persists audit events to a destination.
type Writer interface {
	// Write writes a single event.
	Write(event interface{}) error

	// Close flushes and closes the writer.
	Close() error
}

// jsonWriter encodes events as JSON lines onto an io.Writer.
type jsonWriter struct {
	encoder *json.Encoder
	closer  io.Closer
	mu      sync.Mutex
}

// NewStdoutWriter returns a writer that emits JSON lines on stdout.
func NewStdoutWriter() Writer {
	return &jsonWriter{encoder: json.NewEncoder(os.Stdout)}
}

// NewFileWriter returns a writer that emits JSON lines to a rotating
// log file.
func NewFileWriter(filename string, maxSizeMB, maxAgeDays, maxBackups int) (Writer, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxAge:     maxAgeDays,
		MaxBackups: maxBackups,
		LocalTime:  true,
		Compress:   true,
	}

	w := &jsonWriter{
		encoder: json.NewEncoder(rotator),
		closer:  rotator,
	}

	startup := SystemEvent{
		EventID:   generateEventID(),
		EventType: EventTypeSystemStartup,
		Timestamp: time.Now(),
		Message:   "audit logging started",
	}
	if err := w.Write(startup); err != nil {
		return nil, fmt.Errorf("write startup event: %w", err)
	}

	return w, nil
}

func (w *jsonWriter) Write(event interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.encoder.Encode(event)
}

func (w *jsonWriter) Close() error {
	if w.closer == nil {
		return nil
	}

	shutdown := SystemEvent{
		EventID:   generateEventID(),
		EventType: EventTypeSystemShutdown,
		Timestamp: time.Now(),
		Message:   "audit logging stopped",
	}
	_ = w.Write(shutdown)

	return w.closer.Close()
}
