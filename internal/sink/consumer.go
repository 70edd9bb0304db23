package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vanshika/fraudstream/internal/scoring"
)

const commitTimeout = 10 * time.Second

// MessageSource is the subset of *kafka.Reader the consumer uses.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReaderConfig identifies the topic and consumer group to read.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader opens a consumer-group reader with manual commits.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// ConsumerConfig controls batching.
type ConsumerConfig struct {
	FlushSize     int
	FlushInterval time.Duration
	// Threshold applies in scoring mode.
	Threshold float64
}

// Consumer buffers messages, writes them on flush and commits offsets only after the write succeeded.
type Consumer struct {
	source MessageSource
	writer *Writer
	scorer scoring.Scorer
	cfg    ConsumerConfig
	logger *slog.Logger
}

// NewConsumer builds a consumer. A non-nil scorer switches it to writing high-risk predictions.
func NewConsumer(source MessageSource, writer *Writer, scorer scoring.Scorer, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Consumer{
		source: source,
		writer: writer,
		scorer: scorer,
		cfg:    cfg,
		logger: logger,
	}
}

// Run consumes until ctx is cancelled, flushing whatever is buffered before returning.
func (c *Consumer) Run(ctx context.Context) error {
	var pending []kafka.Message
	deadline := time.Now().Add(c.cfg.FlushInterval)

	flush := func(ctx context.Context) error {
		err := c.flush(ctx, pending)
		if err == nil {
			pending = pending[:0]
		}
		deadline = time.Now().Add(c.cfg.FlushInterval)
		return err
	}

	for {
		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		msg, err := c.source.FetchMessage(fetchCtx)
		cancel()

		switch {
		case err == nil:
			pending = append(pending, msg)
			if len(pending) >= c.cfg.FlushSize {
				if err := flush(ctx); err != nil {
					return err
				}
			}
		case ctx.Err() != nil:
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
			err := flush(drainCtx)
			cancel()
			return err
		case errors.Is(err, context.DeadlineExceeded):
			if err := flush(ctx); err != nil {
				return err
			}
		default:
			return fmt.Errorf("fetch message: %w", err)
		}
	}
}

func (c *Consumer) flush(ctx context.Context, msgs []kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	records := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		rec, err := DecodeRecord(msg.Value)
		if err != nil {
			c.logger.Warn("skipping undecodable message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		records = append(records, rec)
	}

	if err := c.write(ctx, records); err != nil {
		return err
	}
	if err := c.source.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("commit %d messages: %w", len(msgs), err)
	}
	c.logger.Debug("flushed batch", "messages", len(msgs), "records", len(records))
	return nil
}

func (c *Consumer) write(ctx context.Context, records []Record) error {
	_, err := Store(ctx, c.writer, c.scorer, c.cfg.Threshold, records)
	return err
}

// Store writes records as they are, or, with a scorer, writes the predictions above threshold.
func Store(ctx context.Context, w *Writer, scorer scoring.Scorer, threshold float64, records []Record) ([]string, error) {
	if scorer == nil {
		return w.WriteRecords(ctx, records)
	}

	inputs := make([]scoring.Input, 0, len(records))
	for _, rec := range records {
		t, ok := rec.Time()
		if !ok {
			continue
		}
		inputs = append(inputs, rec.ScoringInput(t))
	}
	preds, err := scoring.ScoreRecords(ctx, scorer, inputs, threshold)
	if err != nil {
		return nil, err
	}
	rows := make([]PredictionRow, len(preds))
	for i, p := range preds {
		rows[i] = NewPredictionRow(p)
	}
	return w.WritePredictions(ctx, rows)
}
