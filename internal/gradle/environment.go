package gradle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// Environment describes whether a local Gradle distribution is available.
type Environment struct {
	OfflineDistribution string // absolute path of the archive, empty when absent
	Offline             bool
}

// EnvironmentSource yields the current Environment.
type EnvironmentSource interface {
	Current() Environment
}

// Detector checks for the distribution archive on every call.
type Detector struct {
	Path string
}

// NewDetector returns a detector for the archive at path.
func NewDetector(path string) *Detector {
	return &Detector{Path: path}
}

// Current stats the archive.
func (d *Detector) Current() Environment {
	return detect(d.Path)
}

func detect(path string) Environment {
	if path == "" {
		return Environment{}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Environment{}
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return Environment{}
	}
	return Environment{OfflineDistribution: abs, Offline: true}
}

// Watcher caches the Environment and refreshes it when the archive appears
// or disappears. Used by the long-running server.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current Environment
	done    chan struct{}
}

// NewWatcher starts watching the directory containing the archive. The
// directory must exist.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve distribution path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:    abs,
		watcher: fw,
		current: detect(abs),
		done:    make(chan struct{}),
	}, nil
}

// Current returns the cached environment.
func (w *Watcher) Current() Environment {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run processes file events until ctx is canceled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			w.refresh()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Distribution watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) refresh() {
	env := detect(w.path)
	w.mu.Lock()
	changed := env.Offline != w.current.Offline
	w.current = env
	w.mu.Unlock()
	if changed {
		slog.Info("Offline Gradle distribution changed",
			logfields.Path(w.path),
			slog.Bool("offline", env.Offline))
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
