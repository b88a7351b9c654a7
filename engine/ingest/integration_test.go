package ingest

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Secantwave/Health-Advisor/engine/medquad"
	"github.com/Secantwave/Health-Advisor/engine/rag"
	"github.com/Secantwave/Health-Advisor/engine/semantic"
)

type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 8)
	for i := 0; i < len(text); i++ {
		v[i%8] += float32(text[i])
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v, nil
}

func (h hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type echoGenerator struct{ prompt string }

func (g *echoGenerator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	g.prompt = prompt
	return "generated answer", nil
}

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<Document id="0000001" source="CancerGov">
  <QAPairs>
    <QAPair pid="1">
      <Question qid="0000001-1">What is glaucoma?</Question>
      <Answer>Glaucoma is a group of diseases that damage the eye's optic nerve.</Answer>
    </QAPair>
    <QAPair pid="2">
      <Question qid="0000001-2">What causes anemia?</Question>
      <Answer>Anemia happens when there are not enough healthy red blood cells.</Answer>
    </QAPair>
  </QAPairs>
</Document>`

// End to end: XML file on disk through extraction, batching, the persistent
// store, and retrieval-augmented answering.
func TestMedquadToAnswer(t *testing.T) {
	ctx := context.Background()

	dataDir := t.TempDir()
	sub := filepath.Join(dataDir, "1_CancerGov_QA")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "0000001.xml"), []byte(sampleXML), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, skipped, err := medquad.LoadDir(dataDir, medquad.Options{}, slog.Default())
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(skipped) != 0 || len(docs) != 2 {
		t.Fatalf("docs=%d skipped=%d", len(docs), len(skipped))
	}

	store, err := semantic.NewChromemStore(t.TempDir(), "medical_knowledge", hashEmbedder{})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	batcher := NewBatcher(store, Options{BatchSize: 1, Retry: fastRetry(1)}, slog.Default())
	report, err := batcher.Ingest(ctx, docs)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Ingested != 2 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}

	gen := &echoGenerator{}
	svc := rag.New(store, gen, rag.Options{TopK: 1}, nil)
	ans, err := svc.Ask(ctx, "Question: What is glaucoma?\nAnswer: Glaucoma is a group of diseases that damage the eye's optic nerve.")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "generated answer" {
		t.Errorf("answer = %q", ans.Text)
	}
	if len(ans.Sources) != 1 {
		t.Fatalf("sources = %+v", ans.Sources)
	}
	src := ans.Sources[0]
	if src.ID != "1_CancerGov_QA/0000001.xml_qa_1" {
		t.Errorf("source id = %q", src.ID)
	}
	if src.Metadata["question"] != "What is glaucoma?" {
		t.Errorf("metadata = %v", src.Metadata)
	}
	if !strings.Contains(gen.prompt, "optic nerve") {
		t.Error("retrieved context missing from prompt")
	}
}
