// Package llm defines the Provider interface for the external scoring oracle.
//
// The oracle is a Large Language Model backend (OpenAI, Groq, Anthropic, a
// local Ollama instance, …) asked to rate one scoring dimension on a 1–100
// scale. The scoring pipeline treats it as fallible, latent, and
// non-deterministic: an oracle failure is always recoverable (the heuristic
// score stands in), so implementations should return errors rather than
// retry internally.
//
// Implementations must be safe for concurrent use — dimension ratings for a
// single analysis are requested in parallel.
package llm

import "context"

// Message is one entry of the conversation sent to the model. Role follows
// the OpenAI-style convention of "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// CompletionRequest carries everything the oracle needs to produce a reply.
type CompletionRequest struct {
	// SystemPrompt is an optional high-priority instruction injected before
	// the messages. Providers without a dedicated system field should prepend
	// it as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation. For rating prompts this is a
	// single "user" message.
	Messages []Message

	// Temperature controls output randomness. Rating prompts use a low value
	// so replies stay close to a bare number.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Usage holds token accounting reported by the backend. Counts are in the
// model's native token unit and may be zero when the backend omits them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the oracle's full reply.
type CompletionResponse struct {
	// Content is the text of the reply. Rating callers parse the first
	// integer out of it and discard the rest.
	Content string

	Usage Usage
}

// Provider is the abstraction over any LLM backend used as a scoring oracle.
//
// Complete must propagate context cancellation promptly: per-dimension calls
// run under individual timeouts and a hung call must not block the analysis.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelID returns the backend-specific model identifier (e.g. "gpt-4o",
	// "llama3-8b-8192"). Used for logging and metrics attributes.
	ModelID() string
}
