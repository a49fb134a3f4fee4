package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/lectern/internal/chunk"
	"github.com/MrWong99/lectern/internal/content"
	"github.com/MrWong99/lectern/internal/playback"
	"github.com/MrWong99/lectern/internal/resilience"
	"github.com/MrWong99/lectern/internal/respcache"
	"github.com/MrWong99/lectern/internal/segment"
	"github.com/MrWong99/lectern/internal/session"
	"github.com/MrWong99/lectern/pkg/audio"
	"github.com/MrWong99/lectern/pkg/types"
)

// ValidProviderNames lists known provider names per provider kind. [Validate]
// warns about names outside this list; they may still be registered by a
// custom build.
var ValidProviderNames = map[string][]string{
	"llm":   {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":   {"gemini", "elevenlabs"},
	"image": {"gemini"},
}

// Sample rate bounds accepted for playback.sample_rate.
const (
	minSampleRate = 8000
	maxSampleRate = 48000
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero-valued setting that has a default.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = ":8080"
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.MaxSessions == 0 {
		s.MaxSessions = session.DefaultMaxSessions
	}

	c := &cfg.Content
	if c.Profile == "" {
		c.Profile = "linux"
	}
	if c.Language == "" {
		c.Language = types.LangEnglish
	}
	if c.LengthMinutes == 0 {
		c.LengthMinutes = 3
	}

	p := &cfg.Playback
	if p.ChunkTarget == 0 {
		p.ChunkTarget = chunk.DefaultTarget
	}
	if p.PrefetchWindow == 0 {
		p.PrefetchWindow = segment.DefaultWindow
	}
	if p.PrimaryVoice == "" {
		p.PrimaryVoice = types.VoiceFenrir
	}
	if p.SecondaryVoice == "" {
		p.SecondaryVoice = types.VoicePuck
	}
	if p.SampleRate == 0 {
		p.SampleRate = audio.DefaultSampleRate
	}
	if p.MaxConsecutiveSkips == 0 {
		p.MaxConsecutiveSkips = playback.DefaultMaxConsecutiveSkips
	}

	y := &cfg.Synthesis
	if y.Attempts == 0 {
		y.Attempts = resilience.DefaultRetryPolicy.Attempts
	}
	if y.RetryDelay == 0 {
		y.RetryDelay = resilience.DefaultRetryPolicy.Delay
	}
	if y.AttemptTimeout == 0 {
		y.AttemptTimeout = resilience.DefaultRetryPolicy.AttemptTimeout
	}

	k := &cfg.Cache
	if k.Backend == "" {
		k.Backend = CacheMemory
	}
	if k.Capacity == 0 {
		k.Capacity = respcache.DefaultCapacity
	}
	if k.EvictBatch == 0 {
		k.EvictBatch = min(respcache.DefaultEvictBatch, k.Capacity)
	}

	n := &cfg.Connectivity
	if n.Interval == 0 {
		n.Interval = 30 * time.Second
	}
	if n.Timeout == 0 {
		n.Timeout = 5 * time.Second
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		add("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}
	if cfg.Server.MaxSessions < 0 {
		add("server.max_sessions must not be negative")
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		add("server.tls requires both cert_file and key_file")
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("image", cfg.Providers.Image.Name)
	if cfg.Providers.LLM.Name == "" {
		add("providers.llm.name is required")
	}
	if cfg.Providers.TTS.Name == "" {
		add("providers.tts.name is required")
	}
	if cfg.Providers.Image.Name == "" {
		slog.Warn("providers.image is not configured; sessions will have no illustration")
	}
	for i, e := range cfg.Providers.LLMFallbacks {
		if e.Name == "" {
			add("providers.llm_fallbacks[%d].name is required", i)
		}
		validateProviderName("llm", e.Name)
	}
	for i, e := range cfg.Providers.TTSFallbacks {
		if e.Name == "" {
			add("providers.tts_fallbacks[%d].name is required", i)
		}
		validateProviderName("tts", e.Name)
	}

	// Content
	if cfg.Content.Profile != "" && !slices.Contains(content.ProfileNames(), cfg.Content.Profile) {
		add("content.profile %q is invalid; valid values: %s", cfg.Content.Profile, strings.Join(content.ProfileNames(), ", "))
	}
	if cfg.Content.Language != "" && !cfg.Content.Language.IsValid() {
		add("content.language %q is invalid; valid values: en, zh", cfg.Content.Language)
	}
	if cfg.Content.LengthMinutes < 0 || cfg.Content.LengthMinutes > 60 {
		add("content.length_minutes %d is out of range [1, 60]", cfg.Content.LengthMinutes)
	}

	// Playback
	p := cfg.Playback
	if p.ChunkTarget < 0 {
		add("playback.chunk_target must not be negative")
	}
	if p.PrefetchWindow < 0 {
		add("playback.prefetch_window must not be negative")
	}
	for field, v := range map[string]types.VoiceID{"primary_voice": p.PrimaryVoice, "secondary_voice": p.SecondaryVoice} {
		if v != "" && !v.IsKnown() {
			add("playback.%s %q is not a known voice; valid values: %v", field, v, types.KnownVoices)
		}
	}
	if p.SampleRate != 0 && (p.SampleRate < minSampleRate || p.SampleRate > maxSampleRate) {
		add("playback.sample_rate %d is out of range [%d, %d]", p.SampleRate, minSampleRate, maxSampleRate)
	}
	if p.MaxConsecutiveSkips < 0 {
		add("playback.max_consecutive_skips must not be negative")
	}

	// Synthesis
	if cfg.Synthesis.Attempts < 0 {
		add("synthesis.attempts must not be negative")
	}
	if cfg.Synthesis.RetryDelay < 0 || cfg.Synthesis.AttemptTimeout < 0 {
		add("synthesis durations must not be negative")
	}

	// Cache
	k := cfg.Cache
	if k.Backend != "" && !k.Backend.IsValid() {
		add("cache.backend %q is invalid; valid values: memory, file, postgres", k.Backend)
	}
	if k.Backend == CacheFile && k.Path == "" {
		add("cache.path is required when backend is file")
	}
	if k.Backend == CachePostgres && k.PostgresDSN == "" {
		add("cache.postgres_dsn is required when backend is postgres")
	}
	if k.Capacity < 0 {
		add("cache.capacity must not be negative")
	}
	if k.EvictBatch < 0 || (k.Capacity > 0 && k.EvictBatch > k.Capacity) {
		add("cache.evict_batch %d is out of range [1, capacity]", k.EvictBatch)
	}
	if k.MaxBytes < 0 {
		add("cache.max_bytes must not be negative")
	}

	// Connectivity
	if u := cfg.Connectivity.ProbeURL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			add("connectivity.probe_url %q must be an absolute http(s) URL", u)
		}
	}
	if cfg.Connectivity.Interval < 0 || cfg.Connectivity.Timeout < 0 {
		add("connectivity durations must not be negative")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not in
// [ValidProviderNames] for kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a custom provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
