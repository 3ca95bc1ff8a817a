// Package ingest appends raw measurement messages to the row store. It runs
// a batch consume-validate-store loop against the ingest topic, so a storage
// deployment can be fed without touching its data files by hand.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cropsignal/yield-feature-service/internal/observability"
	"github.com/cropsignal/yield-feature-service/internal/registry"
	"github.com/cropsignal/yield-feature-service/internal/store"
)

// Message is the wire form of one district-year observation on the ingest topic.
type Message struct {
	Region             string    `json:"region"`
	District           string    `json:"district"`
	Year               int       `json:"year"`
	MeteoData          []float64 `json:"meteo_data"`
	Productive         float64   `json:"productive"`
	MeanProductive     float64   `json:"mean_productive"`
	Trend              float64   `json:"trend"`
	ProdDispersionNorm float64   `json:"prod_disperssion_norm"`
}

// RawMessage is an unprocessed message from the ingest topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Commit    func(ctx context.Context) error
}

// BatchExtractor reads up to batchSize raw messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]RawMessage, error)
}

// Appender stores validated measurements.
type Appender interface {
	Append(ctx context.Context, m store.Measurement) error
}

// Pipeline orchestrates the consume-validate-store loop.
type Pipeline struct {
	extractor BatchExtractor
	appender  Appender
	reg       *registry.Registry
	logger    *slog.Logger
	metrics   *observability.IngestMetrics
	batchSize int
	ready     atomic.Bool
}

// New creates an ingest Pipeline.
func New(e BatchExtractor, a Appender, reg *registry.Registry, logger *slog.Logger, metrics *observability.IngestMetrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		appender:  a,
		reg:       reg,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has stored at least one batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("ingest has not stored any measurements yet")
	}
	return nil
}

// Run executes the ingest loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("ingest started", "batch_size", p.batchSize)
	p.metrics.IngestRunning.Set(1)
	defer p.metrics.IngestRunning.Set(0)

	// Exponential backoff keeps outage retries from spinning: 200ms doubling
	// to a 5s cap, reset after any successful batch.
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ingest stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one consume-validate-store cycle. Returns false when the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}
	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))
	*backoff = 200 * time.Millisecond

	stored := 0
	for _, raw := range batch {
		m, err := p.decode(raw)
		if err != nil {
			p.logger.Warn("skipping malformed measurement",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.DecodeErrors.Inc()
			p.commit(ctx, raw)
			continue
		}

		if err := p.appender.Append(ctx, m); err != nil {
			// Store failures are retryable; leave the offset uncommitted
			// and back off so the message is redelivered.
			p.logger.Error("append measurement failed", "error", err,
				"region", m.Region, "district", m.District, "year", m.Year)
			return p.backoffOrStop(ctx, backoff, maxBackoff)
		}
		p.metrics.RowsStored.Inc()
		stored++
		p.commit(ctx, raw)
	}

	if stored > 0 {
		p.metrics.BatchDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// decode unmarshals and validates one raw message against the registry's
// row layout.
func (p *Pipeline) decode(raw RawMessage) (store.Measurement, error) {
	var msg Message
	if err := json.Unmarshal(raw.Value, &msg); err != nil {
		return store.Measurement{}, fmt.Errorf("decode measurement: %w", err)
	}
	if msg.Region == "" || msg.District == "" || msg.Year == 0 {
		return store.Measurement{}, errors.New("measurement missing region, district, or year")
	}
	if want := p.reg.RowLength(); want > 0 && len(msg.MeteoData) != want {
		return store.Measurement{}, fmt.Errorf("meteo row has %d values, registry layout wants %d",
			len(msg.MeteoData), want)
	}

	return store.Measurement{
		Region:   msg.Region,
		District: msg.District,
		Year:     msg.Year,
		Meteo:    msg.MeteoData,
		Stats: store.Stats{
			Productive:         msg.Productive,
			MeanProductive:     msg.MeanProductive,
			Trend:              msg.Trend,
			ProdDispersionNorm: msg.ProdDispersionNorm,
		},
	}, nil
}

func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	if *backoff *= 2; *backoff > maxBackoff {
		*backoff = maxBackoff
	}
	return true
}

func (p *Pipeline) commit(ctx context.Context, raw RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
