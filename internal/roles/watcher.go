package roles

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/authz-engine/resolution/pkg/types"
)

// TableWatcher monitors the role table file and hot-reloads it on change.
// Events are debounced so editors that write in multiple steps trigger a
// single reload.
type TableWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	table    *Table
	logger   *zap.Logger
	onReload func(prev *types.RolePermissionTable, err error)

	debounceTimeout time.Duration
	debounceTimer   *time.Timer
	mu              sync.Mutex
	watching        bool
	stopChan        chan struct{}
}

// NewTableWatcher creates a watcher for a role table file. onReload, if
// non-nil, is invoked after every reload attempt with the snapshot that was
// live before the swap and the outcome; on success the callback must
// invalidate cache entries derived from the previous snapshot.
func NewTableWatcher(path string, table *Table, logger *zap.Logger, onReload func(prev *types.RolePermissionTable, err error)) (*TableWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &TableWatcher{
		watcher:         watcher,
		path:            path,
		table:           table,
		logger:          logger,
		onReload:        onReload,
		debounceTimeout: 500 * time.Millisecond,
		stopChan:        make(chan struct{}),
	}, nil
}

// Watch starts watching the table file's directory for changes.
func (w *TableWatcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.watching = true
	w.mu.Unlock()

	// Watch the containing directory: most editors replace files by rename,
	// which drops a watch on the file itself.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch role table directory: %w", err)
	}

	w.logger.Info("watching role table",
		zap.String("path", w.path),
		zap.Duration("debounce", w.debounceTimeout),
	)

	go w.watchLoop(ctx)
	return nil
}

func (w *TableWatcher) watchLoop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		w.logger.Info("role table watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == filepath.Clean(w.path) {
				w.scheduleReload(event)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("role table watcher error", zap.Error(err))
		}
	}
}

func (w *TableWatcher) scheduleReload(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logger.Debug("role table change detected",
		zap.String("file", event.Name),
		zap.String("op", event.Op.String()),
	)

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceTimeout, func() {
		prev := w.table.Snapshot()
		err := w.table.ReloadFromFile(w.path, w.logger)
		if w.onReload != nil {
			w.onReload(prev, err)
		}
	})
}

// SetDebounceTimeout overrides the debounce window. Used in tests.
func (w *TableWatcher) SetDebounceTimeout(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceTimeout = d
}

// Stop stops the watcher.
func (w *TableWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return nil
	}
	close(w.stopChan)
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	return w.watcher.Close()
}
