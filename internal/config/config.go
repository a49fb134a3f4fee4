// Package config provides the configuration schema, loader, provider
// registry and file watcher for the Lectern server.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/lectern/pkg/types"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to a [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CacheBackend selects the storage behind the response cache.
type CacheBackend string

const (
	// CacheMemory keeps cached responses in process memory only.
	CacheMemory CacheBackend = "memory"

	// CacheFile persists one file per key under Cache.Path.
	CacheFile CacheBackend = "file"

	// CachePostgres persists keys in a PostgreSQL table.
	CachePostgres CacheBackend = "postgres"
)

// IsValid reports whether b is a recognised backend.
func (b CacheBackend) IsValid() bool {
	switch b {
	case CacheMemory, CacheFile, CachePostgres:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Content      ContentConfig      `yaml:"content"`
	Playback     PlaybackConfig     `yaml:"playback"`
	Synthesis    SynthesisConfig    `yaml:"synthesis"`
	Cache        CacheConfig        `yaml:"cache"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default "info".
	LogLevel LogLevel `yaml:"log_level"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`

	// AllowedOrigins lists host patterns allowed to open cross-origin
	// websocket event streams.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxSessions bounds concurrent playback sessions. Default 64.
	MaxSessions int `yaml:"max_sessions"`
}

// TLSConfig holds TLS certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the text, speech and image backends. Each entry is
// resolved through the [Registry].
type ProvidersConfig struct {
	LLM   ProviderEntry `yaml:"llm"`
	TTS   ProviderEntry `yaml:"tts"`
	Image ProviderEntry `yaml:"image"`

	// LLMFallbacks and TTSFallbacks are tried in order when the primary fails
	// or its circuit breaker is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. Name selects the factory in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "gemini",
	// "openai", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// ContentConfig selects the content profile and request defaults.
type ContentConfig struct {
	// Profile is one of interview, linux, database, poem or scripture.
	// Default "linux".
	Profile string `yaml:"profile"`

	// Language is used when a request omits it. Default "en".
	Language types.Language `yaml:"language"`

	// LengthMinutes is used when a request omits it. Default 3.
	LengthMinutes int `yaml:"length_minutes"`
}

// PlaybackConfig tunes how transcripts become playlists and how far ahead
// segments are synthesised. Changes apply to sessions created after a reload.
type PlaybackConfig struct {
	// ChunkTarget is the soft upper bound of characters per segment.
	ChunkTarget int `yaml:"chunk_target"`

	// PrefetchWindow is the number of segments synthesised ahead.
	PrefetchWindow int `yaml:"prefetch_window"`

	PrimaryVoice   types.VoiceID `yaml:"primary_voice"`
	SecondaryVoice types.VoiceID `yaml:"secondary_voice"`

	// SampleRate of the served WAV segments in Hz.
	SampleRate int `yaml:"sample_rate"`

	// MaxConsecutiveSkips is how many failed segments in a row are skipped
	// before the session stops.
	MaxConsecutiveSkips int `yaml:"max_consecutive_skips"`
}

// SynthesisConfig is the retry policy applied to every speech request.
type SynthesisConfig struct {
	Attempts       int           `yaml:"attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// CacheConfig configures the response cache and its storage backend.
type CacheConfig struct {
	// Backend is memory, file or postgres. Default "memory".
	Backend CacheBackend `yaml:"backend"`

	// Path is the directory used by the file backend.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string used by the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Capacity is the maximum number of cached responses. Default 50.
	Capacity int `yaml:"capacity"`

	// EvictBatch is how many of the oldest entries are evicted when Capacity
	// is reached. Default 10.
	EvictBatch int `yaml:"evict_batch"`

	// MaxBytes is the storage quota. Zero means unlimited.
	MaxBytes int64 `yaml:"max_bytes"`
}

// ConnectivityConfig configures the network reachability probe.
type ConnectivityConfig struct {
	// ProbeURL is requested with HEAD. Empty disables probing; the server
	// then always considers itself online.
	ProbeURL string `yaml:"probe_url"`

	// Interval between probes. Default 30s.
	Interval time.Duration `yaml:"interval"`

	// Timeout per probe. Default 5s.
	Timeout time.Duration `yaml:"timeout"`
}
