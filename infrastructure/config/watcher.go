package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mindmap-backend/domain/layout"
)

const debounceDuration = 100 * time.Millisecond

// Watcher serves the dynamic configuration and reloads it when its file
// changes. A file that fails to parse or validate leaves the current values in place.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  DynamicConfig
	mu       sync.RWMutex
	onChange []func(old, updated DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher loads the dynamic configuration at path over base and starts
// watching the file. Call Start to begin reloading.
func NewWatcher(path string, base DynamicConfig, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	current, err := loadDynamic(path, base)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// watch the directory too so atomic saves (rename over the file) are seen
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:    path,
		watcher: fw,
		current: current,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Configuration watcher stopped")
	})
}

// OnChange registers a callback run after every successful reload
func (w *Watcher) OnChange(handler func(old, updated DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the dynamic configuration in force
func (w *Watcher) Current() DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// LayoutOptions returns the spacing in force
func (w *Watcher) LayoutOptions() layout.Options {
	return w.Current().Layout
}

// HistoryCapacity returns the undo depth in force
func (w *Watcher) HistoryCapacity() int {
	return w.Current().History.Capacity
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer
	name := filepath.Base(w.path)

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the file and installs it when valid
func (w *Watcher) reload() {
	w.mu.RLock()
	base := w.current
	w.mu.RUnlock()

	updated, err := loadDynamic(w.path, base)
	if err != nil {
		w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = updated
	handlers := append([]func(old, updated DynamicConfig){}, w.onChange...)
	w.mu.Unlock()

	if old != updated {
		w.logger.Info("Configuration reloaded",
			zap.Float64("level_spacing", updated.Layout.LevelSpacing),
			zap.Float64("node_spacing", updated.Layout.NodeSpacing),
			zap.Int("history_capacity", updated.History.Capacity),
		)
	}
	for _, handler := range handlers {
		handler(old, updated)
	}
}

// loadDynamic overlays the YAML file at path on base and validates the result
func loadDynamic(path string, base DynamicConfig) (DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DynamicConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DynamicConfig{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DynamicConfig{}, err
	}
	return cfg, nil
}
