package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureWriter collects written events for inspection.
type captureWriter struct {
	mu     sync.Mutex
	events []interface{}
	closed bool
}

func (w *captureWriter) Write(event interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
	return nil
}

func (w *captureWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *captureWriter) snapshot() []interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]interface{}, len(w.events))
	copy(out, w.events)
	return out
}

func testLoggerConfig(size int) Config {
	cfg := DefaultConfig()
	cfg.BufferSize = size
	cfg.FlushInterval = time.Hour // flush manually in tests
	return cfg
}

func TestAsyncLoggerFillsDefaults(t *testing.T) {
	w := &captureWriter{}
	l := newAsyncLogger(w, testLoggerConfig(16))
	defer l.Close()

	l.LogDecision(context.Background(), &DecisionEvent{
		UserID: "u1",
		Effect: "deny",
		Reason: "requires role",
	})
	require.NoError(t, l.Flush())

	events := w.snapshot()
	require.Len(t, events, 1)

	ev, ok := events[0].(*DecisionEvent)
	require.True(t, ok)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, EventTypeDecision, ev.EventType)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestAsyncLoggerCarriesRequestID(t *testing.T) {
	w := &captureWriter{}
	l := newAsyncLogger(w, testLoggerConfig(16))
	defer l.Close()

	ctx := WithRequestID(context.Background(), "req-42")
	l.LogDecision(ctx, &DecisionEvent{Effect: "allow", Reason: "ok"})
	require.NoError(t, l.Flush())

	events := w.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "req-42", events[0].(*DecisionEvent).RequestID)
}

func TestAsyncLoggerDropsOldestOnOverflow(t *testing.T) {
	w := &captureWriter{}
	l := newAsyncLogger(w, testLoggerConfig(4))
	defer l.Close()

	for i := 0; i < 6; i++ {
		l.enqueue(&DecisionEvent{
			EventID: fmt.Sprintf("ev-%d", i),
			Effect:  "allow",
		})
	}
	require.NoError(t, l.Flush())

	events := w.snapshot()
	require.Len(t, events, 4)
	assert.Equal(t, "ev-2", events[0].(*DecisionEvent).EventID)
	assert.Equal(t, "ev-5", events[3].(*DecisionEvent).EventID)
}

func TestAsyncLoggerCloseFlushesAndClosesWriter(t *testing.T) {
	w := &captureWriter{}
	l := newAsyncLogger(w, testLoggerConfig(16))

	l.LogSystem(EventTypePolicyReload, "policies reloaded", map[string]interface{}{"count": 3})
	require.NoError(t, l.Close())

	events := w.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypePolicyReload, events[0].(*SystemEvent).EventType)
	assert.True(t, w.closed)

	// Events after Close are discarded.
	l.LogSystem(EventTypeSystemShutdown, "late", nil)
	assert.Len(t, w.snapshot(), 1)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled skips checks", Config{Enabled: false}, false},
		{"stdout", Config{Enabled: true, Type: "stdout"}, false},
		{"file without path", Config{Enabled: true, Type: "file"}, true},
		{"postgres without db", Config{Enabled: true, Type: "postgres"}, true},
		{"unknown type", Config{Enabled: true, Type: "kafka"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	cfg := Config{Enabled: true, Type: "stdout"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.BufferSize)
	assert.Equal(t, 100*time.Millisecond, cfg.FlushInterval)
}

func TestNewLoggerDisabledReturnsNoop(t *testing.T) {
	l, err := NewLogger(&Config{Enabled: false})
	require.NoError(t, err)

	// Must tolerate heavy use without side effects.
	l.LogDecision(context.Background(), &DecisionEvent{})
	assert.NoError(t, l.Flush())
	assert.NoError(t, l.Close())
}
