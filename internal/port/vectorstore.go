package port

import (
	"context"

	"finrag/internal/domain"
)

// VectorStore stores and searches embedding vectors. Implementations must
// be safe for concurrent use: searches may run in parallel, an upsert takes
// exclusive access.
type VectorStore interface {
	// Upsert adds or updates records in the store.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Search returns the topK nearest records to the query vector,
	// ordered by similarity score descending.
	Search(ctx context.Context, vector []float32, topK int) ([]domain.QueryMatch, error)

	// Fetch returns the present subset of the requested ids.
	Fetch(ctx context.Context, ids []string) (map[string]domain.VectorRecord, error)

	// Clear removes every record from the store.
	Clear(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Name identifies the backend ("pinecone", "local").
	Name() string
}
