package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] stats the file.
const DefaultWatchInterval = 5 * time.Second

// Watcher reloads a config file when it changes on disk and hands the old
// and new configuration to a callback. The environment is re-read on every
// reload, so a value pinned by the environment never changes.
//
// A change is picked up once the file's size and mtime stay the same for one
// full interval, so editors that write in several steps are not reloaded
// half way. Rewrites with identical content are ignored.
type Watcher struct {
	path     string
	loader   Loader
	interval time.Duration
	onChange func(old, new *Config)
	onError  func(error)

	current atomic.Pointer[Config]

	// Owned by the Run goroutine.
	applied fileStamp
	pending fileStamp
	digest  [sha256.Size]byte
}

type fileStamp struct {
	size  int64
	mtime time.Time
}

func stampOf(fi os.FileInfo) fileStamp {
	return fileStamp{size: fi.Size(), mtime: fi.ModTime()}
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLoader sets the environment sources used on reload.
func WithLoader(l Loader) WatcherOption {
	return func(w *Watcher) { w.loader = l }
}

// WithErrorHandler receives reload failures. By default they are logged and
// the previous config stays in effect.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher loads path once and returns a Watcher ready to [Watcher.Run].
// An invalid initial file is an error.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		onError: func(err error) {
			slog.Warn("config: reload failed, keeping previous config", "path", path, "err", err)
		},
	}
	for _, o := range opts {
		o(w)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	cfg, digest, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current.Store(cfg)
	w.digest = digest
	w.applied = stampOf(fi)
	w.pending = w.applied
	return w, nil
}

// Current returns the config in effect.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Run polls until ctx is done and returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.tick()
		}
	}
}

func (w *Watcher) tick() {
	fi, err := os.Stat(w.path)
	if err != nil {
		w.onError(err)
		return
	}
	st := stampOf(fi)
	if st == w.applied {
		w.pending = st
		return
	}
	if st != w.pending {
		// Still being written; look again next tick.
		w.pending = st
		return
	}

	cfg, digest, err := w.load()
	w.applied = st
	if err != nil {
		w.onError(err)
		return
	}
	if digest == w.digest {
		return
	}
	w.digest = digest
	old := w.current.Swap(cfg)

	slog.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func (w *Watcher) load() (*Config, [sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	vars, err := w.loader.environment()
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	cfg, err := build(data, vars)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return cfg, sha256.Sum256(data), nil
}
