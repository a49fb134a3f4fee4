// Package gemini implements image.Provider with the Imagen models served by
// the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/MrWong99/lectern/pkg/provider/image"
	"github.com/MrWong99/lectern/pkg/types"
)

const (
	defaultModel = "imagen-4.0-generate-001"
	outputMIME   = "image/jpeg"
)

var _ image.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the image model name.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithAspectRatio sets the requested aspect ratio (e.g. "16:9").
func WithAspectRatio(r string) Option {
	return func(p *Provider) { p.aspectRatio = r }
}

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements image.Provider.
type Provider struct {
	client      *genai.Client
	model       string
	aspectRatio string
	baseURL     string
}

// New creates a Provider. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini image: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel, aspectRatio: "16:9"}
	for _, o := range opts {
		o(p)
	}
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini image: create client: %w", err)
	}
	p.client = client
	return p, nil
}

// Generate implements image.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string) (types.Image, error) {
	resp, err := p.client.Models.GenerateImages(ctx, p.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: outputMIME,
		AspectRatio:    p.aspectRatio,
	})
	if err != nil {
		return types.Image{}, fmt.Errorf("gemini image: generate: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return types.Image{}, image.ErrNoImage
	}
	img := resp.GeneratedImages[0].Image
	if img == nil || len(img.ImageBytes) == 0 {
		return types.Image{}, image.ErrNoImage
	}
	mime := img.MIMEType
	if mime == "" {
		mime = outputMIME
	}
	return types.Image{MIMEType: mime, Data: img.ImageBytes}, nil
}
