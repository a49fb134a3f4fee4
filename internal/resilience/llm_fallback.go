package resilience

import (
	"context"

	"github.com/MrWong99/lectern/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over along a [Chain] of text
// models.
type LLMFallback struct {
	chain *Chain[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback wraps primary as the preferred text model.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{chain: NewChain(primaryName, primary, cfg)}
}

// AddFallback appends a backup text model.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) { f.chain.Append(name, p) }

// Complete implements [llm.Provider].
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Try(ctx, f.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary model's limits.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities { return f.chain.Primary().Capabilities() }

// Breakers reports each model's breaker state.
func (f *LLMFallback) Breakers() map[string]State { return f.chain.States() }
