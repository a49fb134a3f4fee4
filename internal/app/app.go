// Package app wires all Lectern subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithGatherer, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrWong99/lectern/internal/api"
	"github.com/MrWong99/lectern/internal/config"
	"github.com/MrWong99/lectern/internal/connectivity"
	"github.com/MrWong99/lectern/internal/content"
	"github.com/MrWong99/lectern/internal/health"
	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/internal/resilience"
	"github.com/MrWong99/lectern/internal/respcache"
	"github.com/MrWong99/lectern/internal/session"
	"github.com/MrWong99/lectern/pkg/storage"
	"github.com/MrWong99/lectern/pkg/storage/file"
	"github.com/MrWong99/lectern/pkg/storage/memory"
	"github.com/MrWong99/lectern/pkg/storage/postgres"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store    storage.Store
	cache    *respcache.Cache
	monitor  *connectivity.Monitor
	content  *content.Service
	sessions *session.Manager
	api      *api.Server
	server   *http.Server

	metrics  *observe.Metrics
	gatherer prometheus.Gatherer
	level    *slog.LevelVar

	listening chan struct{}
	addr      string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// breakerReporter is implemented by the fallback chains from [BuildProviders].
type breakerReporter interface {
	Breakers() map[string]resilience.State
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a storage backend instead of creating one from
// cache.backend. The App does not close an injected store.
func WithStore(s storage.Store) Option {
	return func(a *App) { a.store = s }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// WithMetrics injects the instrument set instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel hands the App the level variable behind the process logger so
// reloads can change verbosity.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// New creates an App by wiring all subsystems together. The providers come
// from [BuildProviders] or tests.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil || providers.TTS == nil {
		return nil, errors.New("app: llm and tts providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		listening: make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	profile, err := content.LookupProfile(cfg.Content.Profile)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	// ── 1. Storage ───────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Response cache ────────────────────────────────────────────────
	a.cache = respcache.New(a.store, respcache.Config{
		Namespace:  profile.Namespace,
		Capacity:   cfg.Cache.Capacity,
		EvictBatch: cfg.Cache.EvictBatch,
		Metrics:    a.metrics,
	})
	if err := a.cache.Load(ctx); err != nil {
		slog.Warn("response cache not restored, starting empty", "key", a.cache.StorageKey(), "err", err)
	} else {
		slog.Info("response cache restored", "key", a.cache.StorageKey(), "entries", a.cache.Len())
	}

	// ── 3. Connectivity ──────────────────────────────────────────────────
	a.monitor = connectivity.New(connectivity.Config{
		ProbeURL: cfg.Connectivity.ProbeURL,
		Interval: cfg.Connectivity.Interval,
		Timeout:  cfg.Connectivity.Timeout,
	})

	// ── 4. Content service ───────────────────────────────────────────────
	a.content = content.New(providers.LLM, providers.Image, a.cache, content.Config{
		Profile:   profile,
		Online:    a.monitor,
		LLMName:   cfg.Providers.LLM.Name,
		ImageName: cfg.Providers.Image.Name,
		Metrics:   a.metrics,
	})

	// ── 5. Sessions ──────────────────────────────────────────────────────
	a.sessions = session.NewManager(providers.TTS, session.Config{
		Labels:       profile.Labels(),
		Tuning:       Tuning(cfg),
		MaxSessions:  cfg.Server.MaxSessions,
		ProviderName: cfg.Providers.TTS.Name,
		SegmentURL:   api.SegmentPath,
		Metrics:      a.metrics,
	})

	// ── 6. HTTP ──────────────────────────────────────────────────────────
	checkers := []health.Checker{
		health.PingCheck("storage", a.store),
		health.OnlineCheck("network", a.monitor.Online),
	}
	if b, ok := providers.LLM.(breakerReporter); ok {
		checkers = append(checkers, health.BreakerCheck("llm", b.Breakers))
	}
	if b, ok := providers.TTS.(breakerReporter); ok {
		checkers = append(checkers, health.BreakerCheck("tts", b.Breakers))
	}
	checks := health.New(checkers...)
	a.api = api.New(api.Config{
		Content:         a.content,
		Sessions:        a.sessions,
		Health:          checks,
		DefaultLanguage: cfg.Content.Language,
		DefaultMinutes:  cfg.Content.LengthMinutes,
		Gatherer:        a.gatherer,
		OriginPatterns:  cfg.Server.AllowedOrigins,
		Metrics:         a.metrics,
	})
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStore opens the backend selected by cache.backend unless one was
// injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	c := a.cfg.Cache
	switch c.Backend {
	case config.CacheFile:
		s, err := file.Open(c.Path, file.WithMaxBytes(int(c.MaxBytes)))
		if err != nil {
			return err
		}
		a.store = s
	case config.CachePostgres:
		s, err := postgres.NewStore(ctx, c.PostgresDSN, postgres.WithMaxBytes(c.MaxBytes))
		if err != nil {
			return err
		}
		a.store = s
	default:
		a.store = memory.New(memory.WithMaxBytes(int(c.MaxBytes)))
	}
	a.closers = append(a.closers, a.store.Close)
	slog.Info("storage backend ready", "backend", c.Backend)
	return nil
}

// Tuning derives the session tuning from cfg.
func Tuning(cfg *config.Config) session.Tuning {
	p, s := cfg.Playback, cfg.Synthesis
	return session.Tuning{
		ChunkTarget:         p.ChunkTarget,
		PrefetchWindow:      p.PrefetchWindow,
		PrimaryVoice:        p.PrimaryVoice,
		SecondaryVoice:      p.SecondaryVoice,
		SampleRate:          p.SampleRate,
		MaxConsecutiveSkips: p.MaxConsecutiveSkips,
		Retry: resilience.RetryPolicy{
			Attempts:       s.Attempts,
			Delay:          s.RetryDelay,
			AttemptTimeout: s.AttemptTimeout,
		},
	}
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager { return a.sessions }

// Listening is closed once Run has bound its listener.
func (a *App) Listening() <-chan struct{} { return a.listening }

// Addr returns the bound listen address. Valid after [App.Listening] is
// closed.
func (a *App) Addr() string { return a.addr }

// Run starts connectivity probing and serves HTTP until ctx is cancelled or
// the server fails. On cancellation it returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.server.Addr, err)
	}
	a.addr = ln.Addr().String()
	close(a.listening)

	a.monitor.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if tls := a.cfg.Server.TLS; tls != nil {
			errCh <- a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- a.server.Serve(ln)
	}()

	slog.Info("app running", "addr", a.addr, "profile", a.cfg.Content.Profile, "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Reload applies a changed config. Log level and per-session tuning are
// applied immediately; everything else is logged as needing a restart.
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PlaybackChanged || d.SynthesisChanged {
		a.sessions.SetTuning(Tuning(new))
		slog.Info("session tuning updated; applies to new sessions",
			"chunk_target", new.Playback.ChunkTarget,
			"prefetch_window", new.Playback.PrefetchWindow,
			"attempts", new.Synthesis.Attempts,
		)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// Shutdown stops accepting requests, stops every session and closes the
// backends. It respects the context deadline: if ctx expires before all
// closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.sessions.Len(), "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}
		a.monitor.Stop()
		a.sessions.Close(ctx)

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
