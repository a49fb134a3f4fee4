// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a hosted speech model (Gemini, ElevenLabs, …) and turns
// one bounded chunk of text into raw mono 16-bit little-endian PCM. Lectern
// synthesises one playlist segment per call; the segment fetcher adds retry,
// timeout and deduplication on top, so implementations stay simple request /
// response adapters.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/lectern/pkg/types"
)

// ErrNoAudio is returned when a backend answers without any audio payload.
var ErrNoAudio = errors.New("tts: response contained no audio")

// Voice describes one voice offered by a backend.
type Voice struct {
	// ID is the provider-specific voice identifier passed to Synthesize.
	ID types.VoiceID

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which backend this voice belongs to.
	Provider string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text in the given voice and returns the complete PCM
	// payload (mono, 16-bit signed little-endian) at SampleRate Hz.
	//
	// An empty payload with a nil error must not be returned; use ErrNoAudio.
	// Implementations must honour ctx cancellation and deadlines.
	Synthesize(ctx context.Context, text string, voice types.VoiceID) ([]byte, error)

	// SampleRate is the rate in Hz of the PCM returned by Synthesize. It is
	// constant for the lifetime of the provider.
	SampleRate() int

	// ListVoices returns the voices this provider can synthesise with.
	ListVoices(ctx context.Context) ([]Voice, error)
}
