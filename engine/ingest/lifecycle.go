package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Secantwave/Health-Advisor/engine/semantic"
)

// OnExisting decides what happens when the target collection already holds
// documents.
type OnExisting int

const (
	// Abort leaves the collection alone and skips the run.
	Abort OnExisting = iota
	// Replace drops the collection and starts from scratch.
	Replace
	// Append adds into the existing collection.
	Append
)

// Prepare inspects the collection and applies the OnExisting policy. It
// returns false when the run should stop without ingesting.
func Prepare(ctx context.Context, store semantic.Store, mode OnExisting, log *slog.Logger) (bool, error) {
	if log == nil {
		log = slog.Default()
	}
	n, err := store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("ingest: count existing documents: %w", err)
	}
	if n == 0 {
		return true, nil
	}

	switch mode {
	case Replace:
		log.Info("replacing existing collection", "documents", n)
		if err := store.Reset(ctx); err != nil {
			return false, fmt.Errorf("ingest: reset collection: %w", err)
		}
		return true, nil
	case Append:
		log.Info("appending to existing collection", "documents", n)
		return true, nil
	default:
		log.Info("collection already populated, skipping", "documents", n)
		return false, nil
	}
}
