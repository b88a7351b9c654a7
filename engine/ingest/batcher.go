// Package ingest writes documents into the vector store in batches, with
// retry and failure isolation, and hosts the NATS ingestion consumer.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Secantwave/Health-Advisor/engine/domain"
	"github.com/Secantwave/Health-Advisor/engine/semantic"
	"github.com/Secantwave/Health-Advisor/pkg/fn"
)

// DefaultBatchSize is the number of documents added per store call.
const DefaultBatchSize = 50

// Options controls batching and per-batch retry.
type Options struct {
	BatchSize int
	Retry     fn.RetryOpts
}

// DefaultOptions returns the standard batch size and retry policy.
func DefaultOptions() Options {
	return Options{BatchSize: DefaultBatchSize, Retry: fn.DefaultRetry}
}

// BatchError records one batch that failed after retries.
type BatchError struct {
	Batch   int
	FirstID string
	LastID  string
	Err     error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("batch %d (%s..%s): %v", e.Batch, e.FirstID, e.LastID, e.Err)
}

func (e BatchError) Unwrap() error { return e.Err }

// Report summarizes an ingestion run.
type Report struct {
	Total    int
	Ingested int
	Failed   []BatchError
}

// Batcher splits document sets into batches and adds each batch to the
// store. A failed batch is recorded and the run continues with the next one.
type Batcher struct {
	store semantic.Store
	opts  Options
	log   *slog.Logger
}

func NewBatcher(store semantic.Store, opts Options, log *slog.Logger) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = fn.DefaultRetry
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{store: store, opts: opts, log: log}
}

// Ingest adds all docs in batches. The returned error is non-nil only when
// the context is cancelled; batch failures are reported in Report.Failed.
func (b *Batcher) Ingest(ctx context.Context, docs []domain.Document) (Report, error) {
	report := Report{Total: len(docs)}
	size := b.opts.BatchSize

	for i := 0; i < len(docs); i += size {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := i + size
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[i:end]
		batchNum := i/size + 1

		result := fn.Retry(ctx, b.opts.Retry, func(ctx context.Context) fn.Result[int] {
			if err := b.store.Add(ctx, batch); err != nil {
				return fn.Err[int](err)
			}
			return fn.Ok(len(batch))
		})
		if _, err := result.Unwrap(); err != nil {
			be := BatchError{
				Batch:   batchNum,
				FirstID: batch[0].ID,
				LastID:  batch[len(batch)-1].ID,
				Err:     err,
			}
			report.Failed = append(report.Failed, be)
			b.log.Error("batch failed, continuing", "batch", batchNum, "first_id", be.FirstID, "error", err)
			continue
		}
		report.Ingested += len(batch)
		b.log.Info("added batch", "batch", batchNum, "documents", report.Ingested, "total", report.Total)
	}
	return report, nil
}
