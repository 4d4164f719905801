package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/embermind/aura/core/storage"
	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses editor write bursts into one reload.
const watchDebounce = 200 * time.Millisecond

// Watch starts hot reloading: whenever one of the config files changes on
// disk, Load runs again and OnChange callbacks fire with the new config.
// It returns immediately; watching stops when the manager is closed.
func (m *Manager) Watch(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := make(map[string]bool)
	for _, path := range m.configPaths() {
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			// Missing directories are fine; the file may appear later.
			logger.Debug("config watch skipped", "dir", dir, "error", err)
			continue
		}
		watched[dir] = true
	}

	go m.watchLoop(watcher, logger)
	return nil
}

func (m *Manager) configPaths() []string {
	projectDirs := storage.ResolveProjectDirs(m.projectRoot)
	paths := []string{
		projectDirs.Config,
		filepath.Join(projectDirs.Local, "config.yaml"),
	}
	if m.dirs != nil {
		paths = append(paths, m.dirs.ConfigDir("config.yaml"))
	}
	return paths
}

func (m *Manager) watchLoop(watcher *fsnotify.Watcher, logger *slog.Logger) {
	defer watcher.Close()

	relevant := make(map[string]bool)
	for _, path := range m.configPaths() {
		relevant[filepath.Clean(path)] = true
	}

	var mu sync.Mutex
	var pending *time.Timer

	reload := func() {
		if err := m.Reload(); err != nil {
			logger.Warn("config reload failed", "error", err)
			return
		}
		logger.Info("config reloaded")
	}

	for {
		select {
		case <-m.stopWatch:
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			mu.Unlock()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevant[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(watchDebounce, reload)
			mu.Unlock()

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
