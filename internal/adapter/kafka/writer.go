package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/cropsignal/yield-feature-service/internal/ingest"
)

// Writer publishes measurement messages to the ingest topic. Used by the
// seeding CLI to feed a storage deployment.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a producer for the ingest topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and writes measurements in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, measurements []ingest.Message) error {
	if len(measurements) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(measurements))
	for i, m := range measurements {
		value, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("serialize measurement: %w", err)
		}
		msgs[i] = kafkago.Message{
			Key:   []byte(fmt.Sprintf("%s|%s|%d", m.Region, m.District, m.Year)),
			Value: value,
		}
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the producer.
func (w *Writer) Close() error { return w.writer.Close() }
