package semantic

import (
	"context"

	"github.com/Secantwave/Health-Advisor/engine/domain"
)

// Embedder turns text into vectors. pkg/ollama satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is a persistent vector collection of documents. Adding a document
// whose ID already exists overwrites it.
type Store interface {
	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int, error)
	// Add embeds and upserts the documents.
	Add(ctx context.Context, docs []domain.Document) error
	// Query returns up to k results nearest to text, closest first.
	Query(ctx context.Context, text string, k int) ([]Result, error)
	// Reset drops the collection's contents and recreates it empty.
	Reset(ctx context.Context) error
	// Close releases the backing connection, if any.
	Close() error
}
