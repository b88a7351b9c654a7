// Command scrape-encyclopedia crawls the MedlinePlus medical encyclopedia
// and loads the extracted articles into the vector store. With -nats it
// publishes the documents for the ingest daemon instead of writing directly.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/Secantwave/Health-Advisor/engine/encyclopedia"
	"github.com/Secantwave/Health-Advisor/engine/ingest"
	"github.com/Secantwave/Health-Advisor/engine/semantic"
	"github.com/Secantwave/Health-Advisor/pkg/metrics"
	"github.com/Secantwave/Health-Advisor/pkg/natsutil"
	"github.com/Secantwave/Health-Advisor/pkg/ollama"
)

var met = metrics.New()

var (
	mArticles     = met.Counter("health_scrape_articles_total", "Articles extracted")
	mDocsIngested = met.Counter("health_scrape_docs_ingested_total", "Documents stored")
	mBatchErrors  = met.Counter("health_scrape_batch_errors_total", "Batches that failed after retries")
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL     = flag.String("base", encyclopedia.DefaultConfig().BaseURL, "encyclopedia site base URL")
		maxArticles = flag.Int("max-articles", 0, "scrape at most this many articles (0 = all)")
		rps         = flag.Float64("rps", 1, "request rate limit per second")
		idPrefix    = flag.String("id-prefix", "medlineplus", "document ID prefix")
		natsURL     = flag.String("nats", "", "publish to NATS at this URL instead of storing directly")
		storeKind   = flag.String("store", envOr("VECTOR_STORE", "chromem"), "vector store backend: chromem or qdrant")
		dbPath      = flag.String("db", envOr("CHROMEM_PATH", "./medical_knowledge_db"), "chromem database directory")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_ADDR", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("COLLECTION", "medical_knowledge"), "collection name")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		embedModel  = flag.String("embed-model", envOr("EMBED_MODEL", "nomic-embed-text"), "Ollama embedding model")
		batchSize   = flag.Int("batch", ingest.DefaultBatchSize, "documents per store batch")
		vectorDims  = flag.Int("dims", 768, "embedding dimensionality (qdrant only)")
		metricsPort = flag.Int("metrics-port", 9093, "Prometheus metrics port")
	)
	flag.Parse()

	met.ServeAsync(*metricsPort)

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := encyclopedia.DefaultConfig()
	cfg.BaseURL = *baseURL
	cfg.RequestsPerSecond = *rps
	scraper, err := encyclopedia.NewScraper(cfg, log)
	if err != nil {
		log.Error("scraper init failed", "error", err)
		os.Exit(1)
	}

	articles, err := scraper.ScrapeAll(ctx, *maxArticles)
	if err != nil {
		log.Error("scrape failed", "error", err)
		os.Exit(1)
	}
	mArticles.Add(int64(len(articles)))
	docs := encyclopedia.BuildDocuments(articles, *idPrefix)
	log.Info("scrape done", "articles", len(articles), "documents", len(docs))

	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			log.Error("nats connect failed", "url", *natsURL, "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		if err := natsutil.Publish(ctx, nc, ingest.Subject, ingest.Request{Documents: docs}); err != nil {
			log.Error("nats publish failed", "error", err)
			os.Exit(1)
		}
		log.Info("published for ingestion", "subject", ingest.Subject, "documents", len(docs))
		return
	}

	embedder := ollama.New(*ollamaURL, *embedModel, "")
	store, err := newStore(ctx, *storeKind, *dbPath, *qdrantAddr, *collection, *vectorDims, embedder)
	if err != nil {
		log.Error("store connect failed", "backend", *storeKind, "error", err)
		os.Exit(1)
	}
	defer store.Close()

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

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
