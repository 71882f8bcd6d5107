package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"flywheel-console/internal/logging"
	"flywheel-console/internal/runctx"
)

const settingsDebounce = 250 * time.Millisecond

// WatchSettings emits the settings file contents whenever it changes on disk,
// so the composition root can resubscribe channels without a restart. The
// directory is watched rather than the file because editors and SaveSettings
// replace the file instead of writing in place.
func WatchSettings(ctx context.Context, logger *logging.Logger) (<-chan ConsoleSettings, error) {
	if logger == nil {
		panic("config.WatchSettings: logger must not be nil")
	}
	path, err := SettingsPath()
	if err != nil {
		return nil, err
	}
	return watchSettingsFile(ctx, path, logger)
}

func watchSettingsFile(ctx context.Context, path string, logger *logging.Logger) (<-chan ConsoleSettings, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize settings watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch settings directory: %w", err)
	}

	updates := make(chan ConsoleSettings, 1)
	go func() {
		defer close(updates)
		defer func() {
			_ = watcher.Close()
		}()

		var debounce *time.Timer
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				logger.Debug("stopping settings watcher: context canceled", logging.Field("error", ctx.Err()))
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logger.Debugf("settings file event: op=%s path=%s", event.Op.String(), event.Name)
				if debounce == nil {
					debounce = time.NewTimer(settingsDebounce)
				} else {
					debounce.Reset(settingsDebounce)
				}
				pending = debounce.C
			case <-pending:
				pending = nil
				settings, loadErr := loadSettingsFrom(path)
				if loadErr != nil {
					logger.Warn("failed to reload settings", logging.Field("error", loadErr))
					continue
				}
				if !runctx.SendOrDone(ctx, "settings watcher", logger, updates, settings) {
					return
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("settings watcher error", logging.Field("error", watchErr))
			}
		}
	}()
	return updates, nil
}
