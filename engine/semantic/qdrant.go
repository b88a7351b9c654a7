package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Secantwave/Health-Advisor/engine/domain"
)

// QdrantStore keeps the collection in a Qdrant server reached over gRPC.
// Document IDs are mapped to deterministic UUIDs so re-adding the same
// document overwrites the existing point.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	embedder    Embedder
	dims        int
}

// NewQdrantStore connects to Qdrant at addr and ensures the collection
// exists with the given vector dimensionality.
func NewQdrantStore(ctx context.Context, addr, collection string, dims int, embedder Embedder) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	s := &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		embedder:    embedder,
		dims:        dims,
	}
	if err := s.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	d := uint64(s.dims)
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (s *QdrantStore) Add(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		if err := domain.Validate(d); err != nil {
			return err
		}
		texts[i] = d.Text
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("semantic: embed %d documents: %w", len(docs), err)
	}

	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(d.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embeddings[i]},
				},
			},
			Payload: docPayload(d),
		}
	}

	wait := true
	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, text string, k int) ([]Result, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrEmptyCollection
	}
	if k > n {
		k = n
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]Result, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		id, txt, meta := resultFromPayload(r.GetPayload())
		results[i] = Result{
			ID:   id,
			Text: txt,
			// Cosine score is similarity, convert to distance.
			Distance: 1 - r.GetScore(),
			Metadata: meta,
		}
	}
	return results, nil
}

// Reset drops and recreates the collection.
func (s *QdrantStore) Reset(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", s.collection, err)
	}
	return s.ensureCollection(ctx)
}

// pointID derives a stable UUID from the document ID so upserts overwrite.
func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String()
}

// docPayload flattens a document into a Qdrant payload. The original string
// ID travels in the payload since the point ID is a derived UUID.
func docPayload(d domain.Document) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(d.Metadata)+2)
	payload["id"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: d.ID}}
	payload["text"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: d.Text}}
	for k, v := range d.Metadata {
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}
	return payload
}

// resultFromPayload rebuilds a Result from a scored point's payload.
func resultFromPayload(payload map[string]*pb.Value) (id, text string, meta map[string]string) {
	meta = make(map[string]string)
	for k, v := range payload {
		s := v.GetStringValue()
		switch k {
		case "id":
			id = s
		case "text":
			text = s
		default:
			meta[k] = s
		}
	}
	return id, text, meta
}
