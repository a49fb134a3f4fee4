// Package mock provides a test double for the image.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lectern/pkg/provider/image"
	"github.com/MrWong99/lectern/pkg/types"
)

// Provider is a mock implementation of image.Provider.
type Provider struct {
	mu sync.Mutex

	// Image is returned by Generate when Err is nil.
	Image types.Image

	// Err, if non-nil, is returned by Generate.
	Err error

	// Prompts records every prompt passed to Generate.
	Prompts []string
}

var _ image.Provider = (*Provider)(nil)

// Generate records the prompt and returns the configured response.
func (p *Provider) Generate(_ context.Context, prompt string) (types.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Prompts = append(p.Prompts, prompt)
	if p.Err != nil {
		return types.Image{}, p.Err
	}
	return p.Image, nil
}

// CallCount returns the number of Generate calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Prompts)
}
