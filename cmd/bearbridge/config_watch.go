package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// configReloadDebounce coalesces the burst of events editors produce on save.
const configReloadDebounce = 200 * time.Millisecond

// watchConfigFile reloads the config file on change and forwards the material
// table to the daemon as MaterialsReloaded. Other sections need a restart.
//
// The parent directory is watched rather than the file, so atomic
// rename-on-save keeps working.
func watchConfigFile(ctx context.Context, path string, events chan<- Event, logger *slog.Logger) error {
	path = filepath.Clean(ExpandPath(path))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	logger.Info("watching config file", "path", path)

	var (
		debounce   *time.Timer
		debounceCh <-chan time.Time
		last       []string
	)
	if cfg, err := LoadConfigFile(path); err == nil {
		last = cfg.Scene.Materials
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(configReloadDebounce)
			} else {
				debounce.Reset(configReloadDebounce)
			}
			debounceCh = debounce.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)

		case <-debounceCh:
			debounceCh = nil
			cfg, err := LoadConfigFile(path)
			if err != nil {
				logger.Warn("config reload failed; keeping current materials", "error", err)
				continue
			}
			if err := cfg.Validate(); err != nil {
				logger.Warn("config reload invalid; keeping current materials", "error", err)
				continue
			}
			if slices.Equal(last, cfg.Scene.Materials) {
				logger.Debug("config changed; materials unchanged")
				continue
			}
			last = cfg.Scene.Materials

			select {
			case events <- MaterialsReloaded{Materials: cfg.Scene.Materials}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
