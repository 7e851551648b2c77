package driven

import "context"

// EmbeddingService generates vector embeddings for text.
// This is an optional service - when nil, vector search is disabled
// and search degrades to keyword-only.
type EmbeddingService interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
