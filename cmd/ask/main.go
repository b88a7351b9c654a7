// Command ask answers medical questions against the ingested knowledge
// base. With -q it answers once and exits; otherwise it runs an interactive
// prompt loop.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Secantwave/Health-Advisor/engine/domain"
	"github.com/Secantwave/Health-Advisor/engine/rag"
	"github.com/Secantwave/Health-Advisor/engine/semantic"
	"github.com/Secantwave/Health-Advisor/pkg/ollama"
	"github.com/Secantwave/Health-Advisor/pkg/resilience"
)

func main() {
	_ = godotenv.Load()

	var (
		question   = flag.String("q", "", "question to answer once (empty = interactive)")
		topK       = flag.Int("top-k", 5, "retrieved documents per question")
		storeKind  = flag.String("store", envOr("VECTOR_STORE", "chromem"), "vector store backend: chromem or qdrant")
		dbPath     = flag.String("db", envOr("CHROMEM_PATH", "./medical_knowledge_db"), "chromem database directory")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_ADDR", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("COLLECTION", "medical_knowledge"), "collection name")
		ollamaURL  = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		embedModel = flag.String("embed-model", envOr("EMBED_MODEL", "nomic-embed-text"), "Ollama embedding model")
		genModel   = flag.String("model", envOr("GEN_MODEL", "llama3"), "Ollama generation model")
		vectorDims = flag.Int("dims", 768, "embedding dimensionality (qdrant only)")
	)
	flag.Parse()

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := ollama.New(*ollamaURL, *embedModel, *genModel)
	store, err := newStore(ctx, *storeKind, *dbPath, *qdrantAddr, *collection, *vectorDims, client)
	if err != nil {
		log.Error("store connect failed", "backend", *storeKind, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	gen := &breakerGenerator{
		gen:     client,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
	svc := rag.New(store, gen, rag.Options{TopK: *topK, Model: *genModel}, log)

	if *question != "" {
		if err := answer(ctx, svc, *question); err != nil {
			os.Exit(1)
		}
		return
	}

	fmt.Println("Medical QA. Type a question, or 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if q == "quit" || q == "exit" {
			return
		}
		if ctx.Err() != nil {
			return
		}
		answer(ctx, svc, q)
	}
}

func answer(ctx context.Context, svc *rag.Service, question string) error {
	ans, err := svc.Ask(ctx, question)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyCollection):
			fmt.Println("The knowledge base is empty. Run process-medquad or scrape-encyclopedia first.")
		case errors.Is(err, resilience.ErrCircuitOpen):
			fmt.Println("The language model is unavailable right now. Try again shortly.")
		default:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return err
	}

	fmt.Println()
	fmt.Println(ans.Text)
	fmt.Println()
	fmt.Println("Sources:")
	for i, src := range ans.Sources {
		fmt.Printf("  %d. %s (distance %.3f)\n", i+1, describeSource(src), src.Distance)
	}
	fmt.Println()
	return nil
}

// describeSource renders provenance for one retrieved document. QA pairs
// carry question/source_file metadata, encyclopedia articles title/url.
func describeSource(r semantic.Result) string {
	if q, ok := r.Metadata["question"]; ok {
		if f := r.Metadata["source_file"]; f != "" {
			return fmt.Sprintf("%s [MedQuAD %s]", q, f)
		}
		return q
	}
	if title, ok := r.Metadata["title"]; ok {
		if u := r.Metadata["url"]; u != "" {
			return fmt.Sprintf("%s <%s>", title, u)
		}
		return title
	}
	return r.ID
}

// breakerGenerator stops calling the model after repeated failures.
type breakerGenerator struct {
	gen     rag.Generator
	breaker *resilience.Breaker
}

func (b *breakerGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	var out string
	err := b.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.gen.Generate(ctx, model, prompt)
		return err
	})
	return out, err
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
