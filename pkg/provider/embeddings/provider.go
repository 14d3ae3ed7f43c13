// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// The report store uses embeddings of a candidate's concatenated responses to
// find past sessions with similar answers. Embeddings are an optional signal:
// when no provider is configured, similarity search is simply unavailable and
// scoring is unaffected.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by one Provider instance share the dimensionality
// reported by Dimensions. Vectors from different providers or models must not
// be mixed in the same similarity computation.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns a
	// float32 slice of length Dimensions(), or an error if the request fails
	// or ctx is cancelled. Text is passed to the backend verbatim.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// provider. Constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the backend-specific model identifier, e.g.
	// "text-embedding-3-small". Used for logging and schema sanity checks.
	ModelID() string
}
