package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/Secantwave/Health-Advisor/engine/domain"
	"github.com/Secantwave/Health-Advisor/engine/semantic"
)

const (
	// Subject carries document batches for asynchronous ingestion.
	Subject = "health.ingest"
	// DLQSubject receives batches that failed after MaxRetries.
	DLQSubject = "health.ingest.dlq"
	// MaxRetries before a batch is sent to the DLQ.
	MaxRetries = 3
)

// Request is the wire format on Subject.
type Request struct {
	Documents []domain.Document `json:"documents"`
}

// DLQMessage is published to the DLQ on repeated failure.
type DLQMessage struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
	Retries int     `json:"retries"`
}

// publisher is the slice of *nats.Conn the consumer writes through.
type publisher interface {
	Publish(subject string, data []byte) error
	PublishMsg(msg *nats.Msg) error
}

// StartConsumer subscribes to Subject and ingests each received batch.
// Failed batches are re-published with an incremented retry count, then
// dead-lettered once MaxRetries is reached.
func StartConsumer(nc *nats.Conn, store semantic.Store, opts Options, log *slog.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	batcher := NewBatcher(store, opts, log)

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		handleMessage(context.Background(), nc, batcher, msg, log)
	})
}

func handleMessage(ctx context.Context, pub publisher, batcher *Batcher, msg *nats.Msg, log *slog.Logger) {
	var req Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Error("ingest: unmarshal failed", "error", err)
		return
	}
	if len(req.Documents) == 0 {
		log.Warn("ingest: empty request, dropping")
		return
	}

	retries := 0
	if msg.Header != nil {
		if v := msg.Header.Get("X-Retry-Count"); v != "" {
			fmt.Sscanf(v, "%d", &retries)
		}
	}

	report, err := batcher.Ingest(ctx, req.Documents)
	if err == nil && len(report.Failed) == 0 {
		log.Info("ingest: success", "documents", report.Ingested)
		return
	}
	if err == nil {
		err = report.Failed[0]
	}

	retries++
	log.Error("ingest: batch ingestion failed",
		"error", err,
		"documents", len(req.Documents),
		"retry", retries,
	)

	if retries >= MaxRetries {
		dlq := DLQMessage{Request: req, Error: err.Error(), Retries: retries}
		data, _ := json.Marshal(dlq)
		if err := pub.Publish(DLQSubject, data); err != nil {
			log.Error("ingest: DLQ publish failed", "error", err)
		}
		return
	}

	retryMsg := nats.NewMsg(Subject)
	retryMsg.Data = msg.Data
	retryMsg.Header = nats.Header{}
	retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
	if err := pub.PublishMsg(retryMsg); err != nil {
		log.Error("ingest: retry publish failed", "error", err)
	}
}
