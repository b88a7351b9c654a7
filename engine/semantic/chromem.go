package semantic

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"github.com/Secantwave/Health-Advisor/engine/domain"
)

// ChromemStore keeps the collection in an embedded chromem-go database
// persisted on local disk. No external service is needed beyond the embedder.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	embed      chromem.EmbeddingFunc
}

// NewChromemStore opens (or creates) a persistent database at path and a
// collection inside it.
func NewChromemStore(path, collection string, embedder Embedder) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("chromem: open %s: %w", path, err)
	}
	embed := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	})
	col, err := db.GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("chromem: collection %s: %w", collection, err)
	}
	return &ChromemStore{db: db, collection: col, name: collection, embed: embed}, nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *ChromemStore) Add(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	cdocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		if err := domain.Validate(d); err != nil {
			return err
		}
		cdocs = append(cdocs, chromem.Document{
			ID:       d.ID,
			Content:  d.Text,
			Metadata: d.Metadata,
		})
	}
	if err := s.collection.AddDocuments(ctx, cdocs, 1); err != nil {
		return fmt.Errorf("chromem: add %d documents: %w", len(cdocs), err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, text string, k int) ([]Result, error) {
	n := s.collection.Count()
	if n == 0 {
		return nil, domain.ErrEmptyCollection
	}
	if k > n {
		k = n
	}
	hits, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:       h.ID,
			Text:     h.Content,
			Distance: 1 - h.Similarity,
			Metadata: h.Metadata,
		})
	}
	return results, nil
}

func (s *ChromemStore) Reset(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("chromem: delete collection %s: %w", s.name, err)
	}
	col, err := s.db.GetOrCreateCollection(s.name, nil, s.embed)
	if err != nil {
		return fmt.Errorf("chromem: recreate collection %s: %w", s.name, err)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Close() error { return nil }
