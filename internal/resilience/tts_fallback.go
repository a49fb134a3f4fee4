package resilience

import (
	"context"

	"github.com/MrWong99/lectern/pkg/audio"
	"github.com/MrWong99/lectern/pkg/provider/tts"
	"github.com/MrWong99/lectern/pkg/types"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// several speech backends, each behind its own circuit breaker.
//
// The primary's sample rate is the group's rate. Audio from a fallback with a
// different rate is resampled so callers always receive PCM at SampleRate.
type TTSFallback struct {
	chain *Chain[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{chain: NewChain(primaryName, primary, cfg)}
}

// AddFallback registers an additional speech provider.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.chain.Append(name, provider)
}

// Synthesize renders text with the first healthy provider.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice types.VoiceID) ([]byte, error) {
	want := f.SampleRate()
	return Try(ctx, f.chain, func(p tts.Provider) ([]byte, error) {
		pcm, err := p.Synthesize(ctx, text, voice)
		if err != nil {
			return nil, err
		}
		if len(pcm) == 0 {
			return nil, tts.ErrNoAudio
		}
		if got := p.SampleRate(); got != want {
			pcm = audio.Normalize(pcm, got, want)
		}
		return pcm, nil
	})
}

// SampleRate returns the primary provider's rate.
func (f *TTSFallback) SampleRate() int {
	return f.chain.Primary().SampleRate()
}

// Breakers reports each voice backend's breaker state.
func (f *TTSFallback) Breakers() map[string]State { return f.chain.States() }

// ListVoices returns the voices of the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return Try(ctx, f.chain, func(p tts.Provider) ([]tts.Voice, error) {
		return p.ListVoices(ctx)
	})
}
