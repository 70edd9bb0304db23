package config

import (
	"errors"
	"testing"
	"time"

	"github.com/vanshika/fraudstream/internal/domain"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Stream.IntervalSecs != 20 {
		t.Fatalf("expected default interval 20, got %d", cfg.Stream.IntervalSecs)
	}
	if cfg.Stream.FraudRate != 0.001727 {
		t.Fatalf("expected default fraud rate 0.001727, got %v", cfg.Stream.FraudRate)
	}
	if cfg.Stream.BatchMin != 500 || cfg.Stream.BatchMax != 6000 {
		t.Fatalf("expected default batch bounds 500..6000, got %d..%d", cfg.Stream.BatchMin, cfg.Stream.BatchMax)
	}
	if cfg.Stream.Seed != nil {
		t.Fatalf("expected no default seed, got %d", *cfg.Stream.Seed)
	}
	if !cfg.Stream.AutoStart {
		t.Fatalf("expected auto start to default to true")
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Fatalf("unexpected default brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "creditcard-transactions" {
		t.Fatalf("unexpected default topic %s", cfg.Kafka.Topic)
	}
	if cfg.Kafka.Linger != 5*time.Millisecond {
		t.Fatalf("expected 5ms linger, got %s", cfg.Kafka.Linger)
	}
	if cfg.HTTP.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Sink.Threshold != 0.2 {
		t.Fatalf("expected default score threshold 0.2, got %v", cfg.Sink.Threshold)
	}
}

func TestLoadReadsStreamEnvironment(t *testing.T) {
	t.Setenv("INTERVAL_SECS", "3")
	t.Setenv("FRAUD_RATE", "0.25")
	t.Setenv("BATCH_MIN", "10")
	t.Setenv("BATCH_MAX", "20")
	t.Setenv("RNG_SEED", "42")
	t.Setenv("AUTO_START", "false")
	t.Setenv("KAFKA_BOOTSTRAP", "kafka-1:9092, kafka-2:9092")
	t.Setenv("KAFKA_TOPIC", "tx")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	settings := cfg.StreamSettings()
	if settings.IntervalSecs != 3 || settings.FraudRate != 0.25 {
		t.Fatalf("unexpected cadence %+v", settings)
	}
	if settings.BatchMin != 10 || settings.BatchMax != 20 {
		t.Fatalf("unexpected batch bounds %+v", settings)
	}
	if settings.Seed == nil || *settings.Seed != 42 {
		t.Fatalf("expected seed 42, got %v", settings.Seed)
	}
	if cfg.Stream.AutoStart {
		t.Fatalf("expected auto start disabled")
	}
	if settings.Bootstrap() != "kafka-1:9092,kafka-2:9092" {
		t.Fatalf("unexpected bootstrap %q", settings.Bootstrap())
	}
	if settings.Topic != "tx" {
		t.Fatalf("unexpected topic %q", settings.Topic)
	}
}

func TestLoadRejectsInvalidStreamSettings(t *testing.T) {
	t.Setenv("BATCH_MIN", "10")
	t.Setenv("BATCH_MAX", "5")

	_, err := Load()
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("FRAUD_RATE", "often")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed FRAUD_RATE")
	}
}
