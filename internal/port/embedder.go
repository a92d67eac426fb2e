package port

import "context"

// Embedder converts text into a fixed-dimension vector via an external
// embedding provider.
type Embedder interface {
	// Embed generates the embedding for a single text. Retries are handled
	// internally; an error means the retry budget was exhausted.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
