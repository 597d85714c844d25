package app

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"sqlplugin/internal/domain"
	"sqlplugin/internal/service"
)

// MessageRestartRequired is reported when a configuration file changes on disk.
const MessageRestartRequired = "Configuration changed on disk; restart required"

// componentHealth receives component state changes.
type componentHealth interface {
	SetComponentHealth(component string, state domain.HealthState, comment string)
}

// configWatcher flags the configuration component when a watched file changes.
// Compiled queries are immutable, so a change only takes effect after a restart.
type configWatcher struct {
	target   componentHealth
	logger   *log.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	files   map[string]bool
	wg      sync.WaitGroup
}

func newConfigWatcher(target componentHealth, logger *log.Logger) *configWatcher {
	return &configWatcher{
		target:   target,
		logger:   logger.With("component", "config-watcher"),
		debounce: 500 * time.Millisecond,
		files:    make(map[string]bool),
	}
}

// Start watches the directories holding files. Missing directories are skipped.
func (w *configWatcher) Start(ctx context.Context, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	watchedDirs := make(map[string]bool)
	for _, f := range files {
		absPath, err := filepath.Abs(f)
		if err != nil {
			w.logger.Warn("Bad config path", "path", f, "err", err)
			continue
		}
		w.files[absPath] = true
		dir := filepath.Dir(absPath)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			w.logger.Debug("Not watching directory", "dir", dir, "err", err)
			continue
		}
		watchedDirs[dir] = true
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *configWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			absPath, _ := filepath.Abs(event.Name)
			if !w.files[absPath] || event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			path := absPath
			timer = time.AfterFunc(w.debounce, func() {
				w.logger.Warn("Configuration file changed", "path", path)
				w.target.SetComponentHealth(service.ComponentConfiguration, domain.HealthWarning, MessageRestartRequired)
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "err", err)
		}
	}
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *configWatcher) Stop() {
	if w.watcher == nil {
		return
	}
	w.watcher.Close()
	w.wg.Wait()
}
