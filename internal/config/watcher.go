package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// snapshot is one successfully parsed version of the config file.
type snapshot struct {
	cfg     *Config
	sum     [sha256.Size]byte
	modTime time.Time
}

// Watcher re-reads a config file on a fixed interval. A version that parses,
// validates and differs in content from the current one replaces it and is
// handed to the change callback together with its predecessor. Anything
// else is logged and the current config stays in force.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	log      *slog.Logger

	cur atomic.Pointer[snapshot]
	// seen is the mtime of the last file version examined, valid or not.
	seen time.Time

	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often the file is checked. Default 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger replaces slog.Default for reload messages.
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher reads path once, failing if that version is unusable, then
// keeps checking it in the background until [Watcher.Stop].
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		log:      slog.Default(),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := readSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.cur.Store(snap)
	w.seen = snap.modTime

	go w.loop()
	return w, nil
}

// Current is the config in force.
func (w *Watcher) Current() *Config { return w.cur.Load().cfg }

// Stop halts checking and returns once the background goroutine has exited.
// Later calls are no-ops.
func (w *Watcher) Stop() {
	w.quitOnce.Do(func() { close(w.quit) })
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.quit:
			return
		case <-t.C:
			w.poll()
		}
	}
}

// poll runs only on the loop goroutine, so seen needs no lock.
func (w *Watcher) poll() {
	fi, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config: watched file unavailable", "path", w.path, "err", err)
		return
	}
	if fi.ModTime().Equal(w.seen) {
		return
	}

	next, err := readSnapshot(w.path)
	if err != nil {
		w.seen = fi.ModTime()
		w.log.Warn("config: ignoring invalid update", "path", w.path, "err", err)
		return
	}
	w.seen = next.modTime

	prev := w.cur.Load()
	if next.sum == prev.sum {
		return
	}
	w.cur.Store(next)
	w.log.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(prev.cfg, next.cfg)
	}
}

func readSnapshot(path string) (*snapshot, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return &snapshot{cfg: cfg, sum: sha256.Sum256(raw), modTime: fi.ModTime()}, nil
}
