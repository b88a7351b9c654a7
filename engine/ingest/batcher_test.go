package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/Secantwave/Health-Advisor/engine/domain"
	"github.com/Secantwave/Health-Advisor/engine/semantic"
	"github.com/Secantwave/Health-Advisor/pkg/fn"
)

// mockStore records Add calls and can be told to fail batches.
type mockStore struct {
	docs map[string]domain.Document
	adds [][]string // ids per Add call

	failFirstID string // fail every Add whose first doc has this id
	failOnce    bool   // if set, fail only the first matching attempt
	failed      bool

	resets int
}

func newMockStore() *mockStore {
	return &mockStore{docs: make(map[string]domain.Document)}
}

func (m *mockStore) Count(context.Context) (int, error) { return len(m.docs), nil }

func (m *mockStore) Add(_ context.Context, docs []domain.Document) error {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	m.adds = append(m.adds, ids)

	if len(docs) > 0 && docs[0].ID == m.failFirstID {
		if !m.failOnce || !m.failed {
			m.failed = true
			return errors.New("store unavailable")
		}
	}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return nil
}

func (m *mockStore) Query(context.Context, string, int) ([]semantic.Result, error) {
	return nil, nil
}

func (m *mockStore) Reset(context.Context) error {
	m.resets++
	m.docs = make(map[string]domain.Document)
	return nil
}

func (m *mockStore) Close() error { return nil }

func makeDocs(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{
			ID:   fmt.Sprintf("doc-%d", i+1),
			Text: fmt.Sprintf("Question: q%d\nAnswer: a%d", i+1, i+1),
		}
	}
	return docs
}

func fastRetry(attempts int) fn.RetryOpts {
	return fn.RetryOpts{MaxAttempts: attempts, InitialWait: time.Millisecond}
}

func TestBatcher_SplitsBatches(t *testing.T) {
	store := newMockStore()
	b := NewBatcher(store, Options{BatchSize: 3, Retry: fastRetry(1)}, slog.Default())

	report, err := b.Ingest(context.Background(), makeDocs(7))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Total != 7 || report.Ingested != 7 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(store.adds) != 3 {
		t.Fatalf("got %d Add calls, want 3", len(store.adds))
	}
	wantSizes := []int{3, 3, 1}
	for i, ids := range store.adds {
		if len(ids) != wantSizes[i] {
			t.Errorf("batch %d size = %d, want %d", i+1, len(ids), wantSizes[i])
		}
	}
	if store.adds[2][0] != "doc-7" {
		t.Errorf("last batch starts with %s", store.adds[2][0])
	}
}

func TestBatcher_FailedBatchIsIsolated(t *testing.T) {
	store := newMockStore()
	store.failFirstID = "doc-4" // second batch of three
	b := NewBatcher(store, Options{BatchSize: 3, Retry: fastRetry(2)}, slog.Default())

	report, err := b.Ingest(context.Background(), makeDocs(9))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Ingested != 6 {
		t.Errorf("ingested = %d, want 6", report.Ingested)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("failed = %v", report.Failed)
	}
	be := report.Failed[0]
	if be.Batch != 2 || be.FirstID != "doc-4" || be.LastID != "doc-6" {
		t.Errorf("batch error = %+v", be)
	}
	// Third batch still landed.
	if _, ok := store.docs["doc-9"]; !ok {
		t.Error("doc-9 not stored after earlier batch failed")
	}
}

func TestBatcher_RetriesTransientFailure(t *testing.T) {
	store := newMockStore()
	store.failFirstID = "doc-1"
	store.failOnce = true
	b := NewBatcher(store, Options{BatchSize: 5, Retry: fastRetry(3)}, slog.Default())

	report, err := b.Ingest(context.Background(), makeDocs(5))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Ingested != 5 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(store.adds) != 2 {
		t.Errorf("got %d Add calls, want 2 (fail then retry)", len(store.adds))
	}
}

func TestBatcher_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newMockStore()
	b := NewBatcher(store, Options{BatchSize: 2, Retry: fastRetry(1)}, slog.Default())
	if _, err := b.Ingest(ctx, makeDocs(4)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPrepare(t *testing.T) {
	ctx := context.Background()

	t.Run("empty proceeds", func(t *testing.T) {
		ok, err := Prepare(ctx, newMockStore(), Abort, nil)
		if err != nil || !ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
	})

	t.Run("abort on existing", func(t *testing.T) {
		store := newMockStore()
		store.docs["x"] = domain.Document{ID: "x", Text: "t"}
		ok, err := Prepare(ctx, store, Abort, nil)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("expected skip")
		}
		if store.resets != 0 {
			t.Error("abort must not reset")
		}
	})

	t.Run("replace resets", func(t *testing.T) {
		store := newMockStore()
		store.docs["x"] = domain.Document{ID: "x", Text: "t"}
		ok, err := Prepare(ctx, store, Replace, nil)
		if err != nil || !ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
		if store.resets != 1 {
			t.Errorf("resets = %d, want 1", store.resets)
		}
	})

	t.Run("append keeps existing", func(t *testing.T) {
		store := newMockStore()
		store.docs["x"] = domain.Document{ID: "x", Text: "t"}
		ok, err := Prepare(ctx, store, Append, nil)
		if err != nil || !ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
		if store.resets != 0 {
			t.Error("append must not reset")
		}
	})
}
