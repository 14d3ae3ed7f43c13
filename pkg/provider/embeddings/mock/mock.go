// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"
)

// Provider is a mock implementation of embeddings.Provider.
//
// When EmbedFunc is nil, Embed returns a deterministic vector derived from the
// input text so that identical texts embed identically — enough for exercising
// similarity plumbing in tests without a live backend.
type Provider struct {
	mu sync.Mutex

	// Dims is the vector length reported by Dimensions and used by the
	// deterministic default embedding. Defaults to 8 when zero.
	Dims int

	// EmbedFunc, if non-nil, overrides the default behaviour.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedErr, if non-nil, is returned by Embed.
	EmbedErr error

	// EmbedCalls records the texts passed to Embed in order.
	EmbedCalls []string
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	fn, err := p.EmbedFunc, p.EmbedErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if err != nil {
		return nil, err
	}

	vec := make([]float32, p.Dimensions())
	for i, r := range text {
		vec[i%len(vec)] += float32(r%31) / 31
	}
	return vec, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dims <= 0 {
		return 8
	}
	return p.Dims
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return "mock-embeddings"
}
