// Package rag answers medical questions by retrieving the closest documents
// from the vector store, building a grounded prompt, and asking the language
// model for the final answer.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Secantwave/Health-Advisor/engine/domain"
	"github.com/Secantwave/Health-Advisor/engine/semantic"
	"github.com/Secantwave/Health-Advisor/pkg/fn"
)

// Searcher is the slice of the vector store the service reads from.
type Searcher interface {
	Count(ctx context.Context) (int, error)
	Query(ctx context.Context, text string, k int) ([]semantic.Result, error)
}

// Generator produces the answer text. pkg/ollama satisfies this.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Options configures retrieval and generation.
type Options struct {
	TopK          int
	Model         string
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		Model:         "",
		SearchTimeout: 10 * time.Second,
	}
}

const promptTemplate = `You are a helpful medical assistant. Answer the question based on the provided context from medical knowledge bases.

Context:
%s

Question: %s

Answer the question using only the information from the context. If the context does not contain relevant information, say so. Be accurate and concise.

Answer:`

// Service retrieves context and generates answers.
type Service struct {
	search Searcher
	gen    Generator
	opts   Options
	log    *slog.Logger
}

func New(search Searcher, gen Generator, opts Options, log *slog.Logger) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{search: search, gen: gen, opts: opts, log: log}
}

// Answer is the response with the retrieved provenance.
type Answer struct {
	Text    string            `json:"text"`
	Sources []semantic.Result `json:"sources"`
}

// Retrieve returns the TopK closest documents for the question, closest
// first. An empty collection yields domain.ErrEmptyCollection.
func (s *Service) Retrieve(ctx context.Context, question string) ([]semantic.Result, error) {
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	n, err := s.search.Count(searchCtx)
	if err != nil {
		return nil, fmt.Errorf("rag: count documents: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrEmptyCollection
	}

	results, err := s.search.Query(searchCtx, question, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve: %w", err)
	}
	s.log.Info("retrieved context", "question_len", len(question), "results", len(results))
	return results, nil
}

// retrieval carries the question and its retrieved context between stages.
type retrieval struct {
	question string
	results  []semantic.Result
}

func (s *Service) retrieveStage() fn.Stage[string, retrieval] {
	return func(ctx context.Context, question string) fn.Result[retrieval] {
		results, err := s.Retrieve(ctx, question)
		if err != nil {
			return fn.Err[retrieval](err)
		}
		return fn.Ok(retrieval{question: question, results: results})
	}
}

func (s *Service) generateStage() fn.Stage[retrieval, *Answer] {
	return func(ctx context.Context, r retrieval) fn.Result[*Answer] {
		prompt := BuildPrompt(r.question, r.results)
		text, err := s.gen.Generate(ctx, s.opts.Model, prompt)
		if err != nil {
			return fn.Err[*Answer](fmt.Errorf("%w: %v", domain.ErrGeneration, err))
		}
		return fn.Ok(&Answer{Text: text, Sources: r.results})
	}
}

// Ask runs retrieve-then-generate for a question.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	pipeline := fn.Then(
		fn.Traced("rag.retrieve", s.retrieveStage()),
		fn.Traced("rag.generate", s.generateStage()),
	)
	return pipeline(ctx, question).Unwrap()
}

// BuildPrompt assembles the grounded prompt. Retrieved texts are joined in
// retrieval order, separated by blank lines.
func BuildPrompt(question string, results []semantic.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Text
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}
