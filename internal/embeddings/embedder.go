package embeddings

import "context"

// Embedder turns text into vectors for the knowledge base.
type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int

	// Name is the embedding model identifier.
	Name() string
}
