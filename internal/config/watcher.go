package config

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher monitors a config file for changes and calls a callback when the
// file is modified. It uses polling (not fsnotify) to keep dependencies minimal.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	// last known file state for change detection
	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher creates a watcher for the config file at path. The initial
// config must already be loaded and is passed as current; onChange receives
// the previous and freshly loaded config whenever the file changes and still
// validates.
func NewWatcher(path string, current *Config, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		current:  current,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	mtime, hash, err := fileState(path)
	if err != nil {
		return nil, fmt.Errorf("config: stat watch target %q: %w", path, err)
	}
	w.lastMtime, w.lastHash = mtime, hash
	return w, nil
}

// Start begins polling in a background goroutine. Call [Watcher.Stop] to
// shut it down.
func (w *Watcher) Start() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.done:
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
}

// Stop terminates the polling loop. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// poll checks the file for changes and reloads on modification. A reload
// that fails validation is logged and discarded; the previous config stays
// active.
func (w *Watcher) poll() {
	mtime, hash, err := fileState(w.path)
	if err != nil {
		slog.Warn("config: watch poll failed", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := mtime.Equal(w.lastMtime) && hash == w.lastHash
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("config: reload rejected, keeping previous config", "path", w.path, "err", err)
		w.mu.Lock()
		w.lastMtime, w.lastHash = mtime, hash
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.lastMtime, w.lastHash = mtime, hash
	w.mu.Unlock()

	slog.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// fileState returns the file's mtime and content hash.
func fileState(path string) (time.Time, [sha256.Size]byte, error) {
	var zero [sha256.Size]byte

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, zero, err
	}

	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, zero, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return time.Time{}, zero, err
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return info.ModTime(), sum, nil
}
