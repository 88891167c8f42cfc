package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 100 * time.Millisecond

// Watcher monitors a set of files (skip and ignore lists) and calls back once
// per burst of changes.
type Watcher struct {
	paths    map[string]struct{}
	dirs     []string
	debounce time.Duration
	callback func(changed string)
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for paths. Empty paths are ignored.
func NewWatcher(paths []string, debounce time.Duration, callback func(changed string)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		paths:    make(map[string]struct{}, len(paths)),
		debounce: debounce,
		callback: callback,
		stop:     make(chan struct{}),
	}
	seenDirs := map[string]bool{}
	for _, path := range paths {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		w.paths[clean] = struct{}{}
		if dir := filepath.Dir(clean); !seenDirs[dir] {
			seenDirs[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	return w
}

// Start begins watching. Directories are watched rather than files so that
// editors replacing a file on save still trigger.
func (w *Watcher) Start(ctx context.Context) error {
	if len(w.paths) == 0 {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer watcher.Close()

		slog.Debug("starting edge list watcher", "files", len(w.paths))

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Clean(event.Name)
				if _, watched := w.paths[name]; !watched {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(w.debounce, func() {
					slog.Debug("edge list changed", "path", name)
					if w.callback != nil {
						w.callback(name)
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("edge list watcher error", "error", err)

			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}
