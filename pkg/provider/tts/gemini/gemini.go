// Package gemini implements tts.Provider on top of the Gemini speech
// generation models via google.golang.org/genai.
//
// Each Synthesize call is a single GenerateContent request with the AUDIO
// response modality and a prebuilt voice. The model answers with one inline
// blob of raw 16-bit PCM at 24 kHz.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/lectern/pkg/provider/tts"
	"github.com/MrWong99/lectern/pkg/types"
)

const (
	defaultModel = "gemini-2.5-flash-preview-tts"

	// sampleRate is fixed by the Gemini speech models.
	sampleRate = 24000
)

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the speech model name.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the Gemini API endpoint. Used by tests to point at a
// local server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements tts.Provider for Gemini speech models.
type Provider struct {
	client  *genai.Client
	model   string
	baseURL string
}

// New creates a Provider. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini tts: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel}
	for _, o := range opts {
		o(p)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini tts: create client: %w", err)
	}
	p.client = client
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceID) ([]byte, error) {
	if voice == "" {
		voice = types.VoiceFenrir
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: string(voice)},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini tts: generate: %w", err)
	}

	pcm, mime := inlineAudio(resp)
	if len(pcm) == 0 {
		return nil, tts.ErrNoAudio
	}
	if rate, ok := mimeRate(mime); ok && rate != sampleRate {
		return nil, fmt.Errorf("gemini tts: unexpected sample rate %d in %q", rate, mime)
	}
	return pcm, nil
}

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int { return sampleRate }

// ListVoices implements tts.Provider. The prebuilt voice catalogue is static.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	voices := make([]tts.Voice, 0, len(types.KnownVoices))
	for _, v := range types.KnownVoices {
		voices = append(voices, tts.Voice{ID: v, Name: string(v), Provider: "gemini"})
	}
	return voices, nil
}

// inlineAudio returns the concatenated inline data of the first candidate.
func inlineAudio(resp *genai.GenerateContentResponse) ([]byte, string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ""
	}
	var (
		pcm  []byte
		mime string
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil {
			continue
		}
		pcm = append(pcm, part.InlineData.Data...)
		if mime == "" {
			mime = part.InlineData.MIMEType
		}
	}
	return pcm, mime
}

// mimeRate parses the rate parameter of "audio/L16;codec=pcm;rate=24000".
func mimeRate(mime string) (int, bool) {
	for _, param := range strings.Split(mime, ";") {
		v, ok := strings.CutPrefix(strings.TrimSpace(param), "rate=")
		if !ok {
			continue
		}
		rate, err := strconv.Atoi(v)
		return rate, err == nil
	}
	return 0, false
}
