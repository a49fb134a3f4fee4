// Package connectivity tracks whether the hosted model endpoints are
// reachable, so content generation can fail fast with a clear error instead
// of waiting on a dead network.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultInterval = 30 * time.Second
	defaultTimeout  = 5 * time.Second
)

// Config configures a [Monitor].
type Config struct {
	// ProbeURL is requested with HEAD on every check. Any HTTP response,
	// whatever its status, counts as online. Empty disables probing and the
	// monitor always reports online.
	ProbeURL string

	// Interval between background probes. Defaults to 30s if zero.
	Interval time.Duration

	// Timeout bounds a single probe. Defaults to 5s if zero.
	Timeout time.Duration

	// HTTPClient defaults to [http.DefaultClient].
	HTTPClient *http.Client

	// OnChange is called after the online state flips. May be nil.
	OnChange func(online bool)
}

// Monitor periodically probes a URL and caches the result. All methods are
// safe for concurrent use.
type Monitor struct {
	cfg    Config
	online atomic.Bool

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Monitor that starts out online.
func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	m := &Monitor{cfg: cfg, done: make(chan struct{})}
	m.online.Store(true)
	return m
}

// Online reports the result of the most recent probe.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Check probes once, updates the cached state and returns an error when the
// endpoint is unreachable.
func (m *Monitor) Check(ctx context.Context) error {
	if m.cfg.ProbeURL == "" {
		return nil
	}
	err := m.probe(ctx)
	m.set(err == nil)
	return err
}

func (m *Monitor) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.ProbeURL, nil)
	if err != nil {
		return fmt.Errorf("connectivity: build probe: %w", err)
	}
	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("connectivity: probe %s: %w", m.cfg.ProbeURL, err)
	}
	resp.Body.Close()
	return nil
}

func (m *Monitor) set(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	if online {
		slog.Info("connectivity restored", "probe", m.cfg.ProbeURL)
	} else {
		slog.Warn("connectivity lost", "probe", m.cfg.ProbeURL)
	}
	if m.cfg.OnChange != nil {
		m.cfg.OnChange(online)
	}
}

// Start probes immediately and then every Interval in a background goroutine
// until ctx is cancelled or [Monitor.Stop] is called.
func (m *Monitor) Start(ctx context.Context) {
	if m.cfg.ProbeURL == "" {
		return
	}
	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			_ = m.Check(ctx)
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts background probing. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}
