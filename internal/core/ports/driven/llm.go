package driven

import "context"

// LLMService provides chat-style language model completions.
// The core depends only on this narrow signature, not on any vendor.
// This is an optional service - when nil, report generation and the
// search refine pass are disabled.
type LLMService interface {
	// Complete sends a system prompt plus conversation messages and
	// returns the model's text response.
	Complete(ctx context.Context, system string, messages []ChatMessage, opts CompleteOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight
	// request, without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// CompleteOptions configures completion behaviour.
type CompleteOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
