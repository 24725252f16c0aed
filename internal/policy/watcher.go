package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadedEvent reports the outcome of a policy reload.
type ReloadedEvent struct {
	Timestamp time.Time
	Policies  []string
	Error     error
}

// FileWatcher monitors a policy directory and atomically reloads the
// registry when files change. A reload that fails validation leaves the
// previous policy set live.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	loader   *Loader
	registry *Registry
	logger   *zap.Logger

	debounceTimeout time.Duration
	debounceTimer   *time.Timer
	eventChan       chan ReloadedEvent
	stopChan        chan struct{}
	mu              sync.Mutex
	watching        bool
}

// NewFileWatcher creates a watcher over a policy directory.
func NewFileWatcher(path string, registry *Registry, loader *Loader, logger *zap.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:         watcher,
		path:            path,
		loader:          loader,
		registry:        registry,
		logger:          logger,
		debounceTimeout: 500 * time.Millisecond,
		eventChan:       make(chan ReloadedEvent, 10),
		stopChan:        make(chan struct{}),
	}, nil
}

// Watch starts watching and reloading on change.
func (fw *FileWatcher) Watch(ctx context.Context) error {
	fw.mu.Lock()
	if fw.watching {
		fw.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	fw.watching = true
	fw.mu.Unlock()

	if err := fw.watcher.Add(fw.path); err != nil {
		fw.mu.Lock()
		fw.watching = false
		fw.mu.Unlock()
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}

	fw.logger.Info("watching policy directory",
		zap.String("path", fw.path),
		zap.Duration("debounce", fw.debounceTimeout),
	)

	go fw.watchLoop(ctx)
	return nil
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer func() {
		fw.mu.Lock()
		fw.watching = false
		fw.mu.Unlock()
		fw.logger.Info("policy watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stopChan:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			ext := filepath.Ext(event.Name)
			if ext == ".yaml" || ext == ".yml" || ext == ".json" {
				fw.scheduleReload(event)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("policy watcher error", zap.Error(err))
		}
	}
}

func (fw *FileWatcher) scheduleReload(event fsnotify.Event) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.logger.Debug("policy file change detected",
		zap.String("file", event.Name),
		zap.String("op", event.Op.String()),
	)

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debounceTimeout, fw.performReload)
}

func (fw *FileWatcher) performReload() {
	policies, err := fw.loader.LoadFromDirectory(fw.path)
	if err == nil {
		err = fw.registry.ReplaceAll(policies)
	}

	evt := ReloadedEvent{Timestamp: time.Now()}
	if err != nil {
		fw.logger.Error("policy reload failed, keeping previous set",
			zap.String("path", fw.path),
			zap.Error(err),
		)
		evt.Error = err
	} else {
		for _, p := range policies {
			evt.Policies = append(evt.Policies, p.Name)
		}
		fw.logger.Info("policies reloaded",
			zap.Int("count", len(policies)),
			zap.Strings("policies", evt.Policies),
		)
	}

	select {
	case fw.eventChan <- evt:
	default:
		// Nobody draining the channel must not block reloads.
	}
}

// EventChan returns the reload event channel.
func (fw *FileWatcher) EventChan() <-chan ReloadedEvent {
	return fw.eventChan
}

// SetDebounceTimeout overrides the debounce window. Used in tests.
func (fw *FileWatcher) SetDebounceTimeout(d time.Duration) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.debounceTimeout = d
}

// Stop stops watching.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.watching {
		return nil
	}
	close(fw.stopChan)
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	return fw.watcher.Close()
}
