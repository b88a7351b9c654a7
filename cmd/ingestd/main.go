// Command ingestd consumes document batches from NATS and writes them to
// the vector store, dead-lettering batches that keep failing.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/Secantwave/Health-Advisor/engine/ingest"
	"github.com/Secantwave/Health-Advisor/engine/semantic"
	"github.com/Secantwave/Health-Advisor/pkg/metrics"
	"github.com/Secantwave/Health-Advisor/pkg/natsutil"
	"github.com/Secantwave/Health-Advisor/pkg/ollama"
)

var met = metrics.New()

func main() {
	_ = godotenv.Load()

	var (
		natsURL     = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
		storeKind   = flag.String("store", envOr("VECTOR_STORE", "chromem"), "vector store backend: chromem or qdrant")
		dbPath      = flag.String("db", envOr("CHROMEM_PATH", "./medical_knowledge_db"), "chromem database directory")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_ADDR", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("COLLECTION", "medical_knowledge"), "collection name")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		embedModel  = flag.String("embed-model", envOr("EMBED_MODEL", "nomic-embed-text"), "Ollama embedding model")
		batchSize   = flag.Int("batch", ingest.DefaultBatchSize, "documents per store batch")
		vectorDims  = flag.Int("dims", 768, "embedding dimensionality (qdrant only)")
		metricsPort = flag.Int("metrics-port", 9091, "Prometheus metrics port")
	)
	flag.Parse()

	met.ServeAsync(*metricsPort)

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	embedder := ollama.New(*ollamaURL, *embedModel, "")
	store, err := newStore(ctx, *storeKind, *dbPath, *qdrantAddr, *collection, *vectorDims, embedder)
	if err != nil {
		log.Error("store connect failed", "backend", *storeKind, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Error("nats connect failed", "url", *natsURL, "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	sub, err := ingest.StartConsumer(nc, store, ingest.Options{BatchSize: *batchSize}, log)
	if err != nil {
		log.Error("subscribe failed", "subject", ingest.Subject, "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	dlqSub, err := natsutil.Subscribe(nc, ingest.DLQSubject, func(_ context.Context, m ingest.DLQMessage) {
		log.Warn("dead-lettered batch", "documents", len(m.Request.Documents), "retries", m.Retries, "error", m.Error)
	})
	if err != nil {
		log.Error("dlq subscribe failed", "subject", ingest.DLQSubject, "error", err)
		os.Exit(1)
	}
	defer dlqSub.Unsubscribe()

	log.Info("consuming", "subject", ingest.Subject, "dlq", ingest.DLQSubject, "backend", *storeKind)
	<-ctx.Done()
	log.Info("shutting down")
}

func newStore(ctx context.Context, kind, dbPath, qdrantAddr, collection string, dims int, embedder semantic.Embedder) (semantic.Store, error) {
	if kind == "qdrant" {
		return semantic.NewQdrantStore(ctx, qdrantAddr, collection, dims, embedder)
	}
	return semantic.NewChromemStore(dbPath, collection, embedder)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
