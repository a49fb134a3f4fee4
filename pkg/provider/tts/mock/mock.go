// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{PCM: make([]byte, 4800)}
//	pcm, err := p.Synthesize(ctx, "Hello.", types.VoiceFenrir)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lectern/pkg/provider/tts"
	"github.com/MrWong99/lectern/pkg/types"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice types.VoiceID
}

// Provider is a mock implementation of tts.Provider. Zero values make
// Synthesize return an empty payload and a nil error, which callers treat as a
// failed attempt.
type Provider struct {
	mu sync.Mutex

	// PCM is returned by Synthesize when SynthesizeFunc is nil.
	PCM []byte

	// Err, if non-nil, is returned by Synthesize when SynthesizeFunc is nil.
	Err error

	// SynthesizeFunc, if set, replaces the static PCM/Err response. It is
	// called without the mock's lock held.
	SynthesizeFunc func(ctx context.Context, text string, voice types.VoiceID) ([]byte, error)

	// Rate is returned by SampleRate. Zero reports 24000.
	Rate int

	// Voices is returned by ListVoices.
	Voices []tts.Voice

	// ListVoicesErr, if non-nil, is returned by ListVoices.
	ListVoicesErr error

	calls []SynthesizeCall
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize records the call and returns the configured response.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceID) ([]byte, error) {
	p.mu.Lock()
	p.calls = append(p.calls, SynthesizeCall{Text: text, Voice: voice})
	fn, pcm, err := p.SynthesizeFunc, p.PCM, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, voice)
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(pcm))
	copy(out, pcm)
	return out, nil
}

// SampleRate returns Rate, or 24000 when unset.
func (p *Provider) SampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Rate == 0 {
		return 24000
	}
	return p.Rate
}

// ListVoices returns Voices or ListVoicesErr.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	return append([]tts.Voice(nil), p.Voices...), nil
}

// Calls returns a copy of every recorded Synthesize call.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SynthesizeCall(nil), p.calls...)
}

// CallCount returns the number of Synthesize calls made so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}
