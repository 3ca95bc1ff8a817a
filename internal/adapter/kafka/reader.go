// Package kafka adapts the ingest topic to the pipeline's batch interfaces.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/cropsignal/yield-feature-service/internal/ingest"
)

// drainWait bounds how long a batch waits for follow-up messages after the
// first one arrives. Short so a trickle of messages still flushes promptly.
const drainWait = 500 * time.Millisecond

// Reader consumes raw measurement messages from the ingest topic.
// It implements ingest.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the ingest topic.
func NewReader(brokers []string, topic, groupID string, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch blocks for the first message, then drains up to batchSize
// messages that are already close behind it. Offsets are committed through
// each message's Commit hook after the pipeline stores it.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]ingest.RawMessage, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	batch := make([]ingest.RawMessage, 0, batchSize)
	batch = append(batch, r.wrap(first))

	for len(batch) < batchSize {
		drainCtx, cancel := context.WithTimeout(ctx, drainWait)
		msg, err := r.reader.FetchMessage(drainCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			// Return what we have; the pipeline stores it before the
			// next ExtractBatch surfaces the failure.
			r.logger.Warn("fetch message failed mid-batch", "error", err)
			break
		}
		batch = append(batch, r.wrap(msg))
	}
	return batch, nil
}

func (r *Reader) wrap(msg kafkago.Message) ingest.RawMessage {
	return ingest.RawMessage{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}
}

// Close releases the consumer group membership.
func (r *Reader) Close() error { return r.reader.Close() }
