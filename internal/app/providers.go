package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/lectern/internal/config"
	"github.com/MrWong99/lectern/internal/resilience"
	"github.com/MrWong99/lectern/pkg/provider/image"
	"github.com/MrWong99/lectern/pkg/provider/llm"
	"github.com/MrWong99/lectern/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Image may be nil.
type Providers struct {
	LLM   llm.Provider
	TTS   tts.Provider
	Image image.Provider
}

// breakerConfig guards every provider in a fallback chain.
var breakerConfig = resilience.FallbackConfig{
	CircuitBreaker: resilience.CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
		HalfOpenMax:  1,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("provider circuit breaker transition", "provider", name, "from", from, "to", to)
		},
	},
}

// BuildProviders instantiates every provider named in cfg through reg. Text
// and speech providers are wrapped in circuit-breaking fallback chains; the
// configured fallbacks are appended in order.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	pc := cfg.Providers
	ps := &Providers{}

	primaryLLM, err := reg.CreateLLM(pc.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", pc.LLM.Name, err)
	}
	llmChain := resilience.NewLLMFallback(primaryLLM, pc.LLM.Name, breakerConfig)
	for i, entry := range pc.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %d %q: %w", i, entry.Name, err)
		}
		llmChain.AddFallback(entry.Name, p)
	}
	ps.LLM = llmChain
	slog.Info("provider created", "kind", "llm", "name", pc.LLM.Name, "fallbacks", len(pc.LLMFallbacks))

	primaryTTS, err := reg.CreateTTS(pc.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", pc.TTS.Name, err)
	}
	ttsChain := resilience.NewTTSFallback(primaryTTS, pc.TTS.Name, breakerConfig)
	for i, entry := range pc.TTSFallbacks {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback %d %q: %w", i, entry.Name, err)
		}
		ttsChain.AddFallback(entry.Name, p)
	}
	ps.TTS = ttsChain
	slog.Info("provider created", "kind", "tts", "name", pc.TTS.Name, "fallbacks", len(pc.TTSFallbacks))

	if pc.Image.Name != "" {
		p, err := reg.CreateImage(pc.Image)
		if err != nil {
			return nil, fmt.Errorf("create image provider %q: %w", pc.Image.Name, err)
		}
		ps.Image = p
		slog.Info("provider created", "kind", "image", "name", pc.Image.Name)
	}

	return ps, nil
}
