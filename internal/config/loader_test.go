package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/lectern/internal/config"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	return mustLoad(t, minimalYAML)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*config.Config) {}},
		{
			name:    "invalid log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "tls missing key",
			mutate:  func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c.pem"} },
			wantErr: "server.tls",
		},
		{
			name:    "unknown profile",
			mutate:  func(c *config.Config) { c.Content.Profile = "cooking" },
			wantErr: "content.profile",
		},
		{
			name:    "unknown language",
			mutate:  func(c *config.Config) { c.Content.Language = "fr" },
			wantErr: "content.language",
		},
		{
			name:    "length out of range",
			mutate:  func(c *config.Config) { c.Content.LengthMinutes = 90 },
			wantErr: "content.length_minutes",
		},
		{
			name:    "unknown voice",
			mutate:  func(c *config.Config) { c.Playback.SecondaryVoice = "Alloy" },
			wantErr: "playback.secondary_voice",
		},
		{
			name:    "sample rate too high",
			mutate:  func(c *config.Config) { c.Playback.SampleRate = 96000 },
			wantErr: "playback.sample_rate",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *config.Config) { c.Synthesis.Attempts = -1 },
			wantErr: "synthesis.attempts",
		},
		{
			name:    "file backend without path",
			mutate:  func(c *config.Config) { c.Cache.Backend = config.CacheFile },
			wantErr: "cache.path",
		},
		{
			name:    "postgres backend without dsn",
			mutate:  func(c *config.Config) { c.Cache.Backend = config.CachePostgres },
			wantErr: "cache.postgres_dsn",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.Cache.Backend = "redis" },
			wantErr: "cache.backend",
		},
		{
			name:    "evict batch above capacity",
			mutate:  func(c *config.Config) { c.Cache.EvictBatch = c.Cache.Capacity + 1 },
			wantErr: "cache.evict_batch",
		},
		{
			name:    "relative probe url",
			mutate:  func(c *config.Config) { c.Connectivity.ProbeURL = "/generate_204" },
			wantErr: "connectivity.probe_url",
		},
		{
			name:    "fallback without name",
			mutate:  func(c *config.Config) { c.Providers.LLMFallbacks = []config.ProviderEntry{{Model: "x"}} },
			wantErr: "providers.llm_fallbacks[0].name",
		},
		{
			name:   "custom provider name only warns",
			mutate: func(c *config.Config) { c.Providers.TTS.Name = "my-custom-tts" },
		},
		{
			name:   "missing image provider only warns",
			mutate: func(c *config.Config) { c.Providers.Image = config.ProviderEntry{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Server.LogLevel = "loud"
	cfg.Content.Language = "fr"
	cfg.Cache.Backend = config.CacheFile

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"server.log_level", "content.language", "cache.path"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"llm", "tts", "image"} {
		names, ok := config.ValidProviderNames[kind]
		if !ok || len(names) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}
