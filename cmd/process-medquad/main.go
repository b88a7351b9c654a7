// Command process-medquad walks a MedQuAD checkout, extracts QA pairs from
// its XML files, and loads them into the vector store in batches.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Secantwave/Health-Advisor/engine/ingest"
	"github.com/Secantwave/Health-Advisor/engine/medquad"
	"github.com/Secantwave/Health-Advisor/engine/semantic"
	"github.com/Secantwave/Health-Advisor/pkg/metrics"
	"github.com/Secantwave/Health-Advisor/pkg/ollama"
)

var met = metrics.New()

var (
	mFilesSkipped = met.Counter("health_medquad_files_skipped_total", "XML files skipped")
	mDocsTotal    = met.Counter("health_medquad_docs_total", "QA documents extracted")
	mDocsIngested = met.Counter("health_medquad_docs_ingested_total", "QA documents stored")
	mBatchErrors  = met.Counter("health_medquad_batch_errors_total", "Batches that failed after retries")
)

func main() {
	_ = godotenv.Load()

	var (
		dataDir     = flag.String("dir", envOr("MEDQUAD_DIR", "MedQuAD"), "MedQuAD repository root")
		subdirs     = flag.String("subdirs", "", "comma-separated top-level subdirs to include (empty = all)")
		maxFiles    = flag.Int("max-files", 0, "process at most this many XML files (0 = all)")
		onExisting  = flag.String("on-existing", "abort", "abort|replace|append when the collection is populated")
		storeKind   = flag.String("store", envOr("VECTOR_STORE", "chromem"), "vector store backend: chromem or qdrant")
		dbPath      = flag.String("db", envOr("CHROMEM_PATH", "./medical_knowledge_db"), "chromem database directory")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_ADDR", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("COLLECTION", "medical_knowledge"), "collection name")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		embedModel  = flag.String("embed-model", envOr("EMBED_MODEL", "nomic-embed-text"), "Ollama embedding model")
		batchSize   = flag.Int("batch", ingest.DefaultBatchSize, "documents per store batch")
		vectorDims  = flag.Int("dims", 768, "embedding dimensionality (qdrant only)")
		metricsPort = flag.Int("metrics-port", 9092, "Prometheus metrics port")
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
	log.Info("connected to store", "backend", *storeKind, "collection", *collection)

	mode, ok := parseOnExisting(*onExisting)
	if !ok {
		log.Error("invalid -on-existing value", "value", *onExisting)
		os.Exit(1)
	}
	proceed, err := ingest.Prepare(ctx, store, mode, log)
	if err != nil {
		log.Error("collection check failed", "error", err)
		os.Exit(1)
	}
	if !proceed {
		return
	}

	opts := medquad.Options{MaxFiles: *maxFiles}
	if *subdirs != "" {
		opts.Subdirs = strings.Split(*subdirs, ",")
	}
	docs, skipped, err := medquad.LoadDir(*dataDir, opts, log)
	if err != nil {
		log.Error("load failed", "dir", *dataDir, "error", err)
		os.Exit(1)
	}
	mFilesSkipped.Add(int64(len(skipped)))
	mDocsTotal.Add(int64(len(docs)))
	for _, s := range skipped {
		log.Warn("skipped file", "path", s.Path, "error", s.Err)
	}
	log.Info("extraction done", "documents", len(docs), "skipped_files", len(skipped))

	batcher := ingest.NewBatcher(store, ingest.Options{BatchSize: *batchSize}, log)
	report, err := batcher.Ingest(ctx, docs)
	if err != nil {
		log.Error("ingestion interrupted", "error", err)
		os.Exit(1)
	}
	mDocsIngested.Add(int64(report.Ingested))
	mBatchErrors.Add(int64(len(report.Failed)))
	for _, be := range report.Failed {
		log.Error("batch lost", "batch", be.Batch, "first_id", be.FirstID, "error", be.Err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		log.Error("final count failed", "error", err)
		os.Exit(1)
	}
	log.Info("done", "ingested", report.Ingested, "failed_batches", len(report.Failed), "collection_size", n)
}

func newStore(ctx context.Context, kind, dbPath, qdrantAddr, collection string, dims int, embedder semantic.Embedder) (semantic.Store, error) {
	if kind == "qdrant" {
		return semantic.NewQdrantStore(ctx, qdrantAddr, collection, dims, embedder)
	}
	return semantic.NewChromemStore(dbPath, collection, embedder)
}

func parseOnExisting(s string) (ingest.OnExisting, bool) {
	switch s {
	case "abort":
		return ingest.Abort, true
	case "replace":
		return ingest.Replace, true
	case "append":
		return ingest.Append, true
	}
	return ingest.Abort, false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
