package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/vanshika/fraudstream/internal/domain"
	"github.com/vanshika/fraudstream/internal/events"
)

// Options configures the Kafka publisher.
type Options struct {
	Brokers        []string
	Topic          string
	ClientID       string
	Linger         time.Duration
	ProduceTimeout time.Duration
}

// KafkaPublisher produces events with all-replica acknowledgment and idempotent writes.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// Open creates a producer client and verifies the cluster is reachable.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(opts.Brokers) == 0 {
		return nil, ErrMissingBrokers
	}

	// Idempotent writes are the franz-go default and are left enabled.
	kopts := []kgo.Opt{
		kgo.SeedBrokers(opts.Brokers...),
		kgo.DefaultProduceTopic(opts.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(opts.Linger),
	}
	if opts.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(opts.ClientID))
	}
	if opts.ProduceTimeout > 0 {
		kopts = append(kopts, kgo.RecordDeliveryTimeout(opts.ProduceTimeout))
	}
	if logger != nil {
		kopts = append(kopts, kgo.WithLogger(NewKgoLogger(logger)))
	}

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping %v: %w", domain.ErrBrokerUnavailable, opts.Brokers, err)
	}

	return &KafkaPublisher{client: client, topic: opts.Topic}, nil
}

// Publish sends every event and returns once each send has been acknowledged or has failed.
func (p *KafkaPublisher) Publish(ctx context.Context, batch []events.TransactionEvent) error {
	if len(batch) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(batch))
	for _, ev := range batch {
		msg, err := NewMessage(ev)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrPublish, err)
		}
		records = append(records, toRecord(p.topic, msg))
	}

	results := p.client.ProduceSync(ctx, records...)
	perr := PublishError{Total: len(records)}
	for _, res := range results {
		perr.append(res.Err)
	}
	return perr.asError()
}

// Close releases the client connections. Publish never leaves records buffered.
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

func toRecord(topic string, msg Message) *kgo.Record {
	headers := make([]kgo.RecordHeader, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return &kgo.Record{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

var _ Publisher = (*KafkaPublisher)(nil)
