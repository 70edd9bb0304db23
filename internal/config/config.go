package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vanshika/fraudstream/internal/domain"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig
	Stream    StreamConfig
	Kafka     KafkaConfig
	Generator GeneratorConfig
	Sink      SinkConfig
	Logging   LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MetricsEnabled    bool
	AllowedOriginsCSV string
}

// StreamConfig describes the producer loop cadence and batch shape.
type StreamConfig struct {
	IntervalSecs int
	FraudRate    float64
	BatchMin     int
	BatchMax     int
	Seed         *int64
	AutoStart    bool
	Shuffle      bool
}

// KafkaConfig describes connectivity to the broker.
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	ClientID       string
	Linger         time.Duration
	ProduceTimeout time.Duration
}

// GeneratorConfig points at the synthetic row model.
type GeneratorConfig struct {
	ModelPath string
}

// SinkConfig controls the partitioned file sink.
type SinkConfig struct {
	BaseDir        string
	Grain          string
	FilenamePrefix string
	GroupID        string
	FlushSize      int
	FlushInterval  time.Duration
	Workers        int
	Score          bool
	ScorerPath     string
	Threshold      float64
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	Colored       bool
	IncludeCaller bool
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"

	defaultIntervalSecs = 20
	defaultFraudRate    = 0.001727
	defaultBatchMin     = 500
	defaultBatchMax     = 6000

	defaultBootstrap      = "localhost:9092"
	defaultTopic          = "creditcard-transactions"
	defaultClientID       = "fraudstream"
	defaultLinger         = 5 * time.Millisecond
	defaultProduceTimeout = 30 * time.Second

	defaultSinkBaseDir       = "./data"
	defaultSinkGrain         = "transactions"
	defaultSinkPrefix        = "part"
	defaultSinkGroupID       = "fraudstream-sink"
	defaultSinkFlushSize     = 1000
	defaultSinkFlushInterval = 30 * time.Second
	defaultSinkWorkers       = 4
	defaultScoreThreshold    = 0.2
)

// Load reads configuration from a local .env file and environment variables, applying defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Stream: StreamConfig{
			AutoStart: parseBoolWithDefault("AUTO_START", true),
			Shuffle:   parseBoolWithDefault("SHUFFLE", true),
		},
		Kafka: KafkaConfig{
			Brokers:  splitCSV(valueOrDefault("KAFKA_BOOTSTRAP", defaultBootstrap)),
			Topic:    valueOrDefault("KAFKA_TOPIC", defaultTopic),
			ClientID: valueOrDefault("KAFKA_CLIENT_ID", defaultClientID),
		},
		Generator: GeneratorConfig{
			ModelPath: os.Getenv("SYNTH_PATH"),
		},
		Sink: SinkConfig{
			BaseDir:        valueOrDefault("SINK_BASE_DIR", defaultSinkBaseDir),
			Grain:          valueOrDefault("SINK_GRAIN", defaultSinkGrain),
			FilenamePrefix: valueOrDefault("SINK_FILENAME_PREFIX", defaultSinkPrefix),
			GroupID:        valueOrDefault("SINK_GROUP_ID", defaultSinkGroupID),
			FlushSize:      parseIntWithDefault("SINK_FLUSH_SIZE", defaultSinkFlushSize),
			Workers:        parseIntWithDefault("SINK_WORKERS", defaultSinkWorkers),
			Score:          parseBoolWithDefault("SINK_SCORE", false),
			ScorerPath:     os.Getenv("SCORER_PATH"),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			Colored:       parseBoolWithDefault("LOG_COLOR", false),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key    string
		target *time.Duration
		def    time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout, defaultReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout, defaultWriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout, defaultIdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout, defaultShutdownTimeout},
		{"KAFKA_LINGER", &cfg.Kafka.Linger, defaultLinger},
		{"KAFKA_PRODUCE_TIMEOUT", &cfg.Kafka.ProduceTimeout, defaultProduceTimeout},
		{"SINK_FLUSH_INTERVAL", &cfg.Sink.FlushInterval, defaultSinkFlushInterval},
	}
	for _, d := range durations {
		value, err := parseDuration(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.target = value
	}

	if cfg.Stream.IntervalSecs, err = parseInt("INTERVAL_SECS", defaultIntervalSecs); err != nil {
		return Config{}, err
	}
	if cfg.Stream.BatchMin, err = parseInt("BATCH_MIN", defaultBatchMin); err != nil {
		return Config{}, err
	}
	if cfg.Stream.BatchMax, err = parseInt("BATCH_MAX", defaultBatchMax); err != nil {
		return Config{}, err
	}
	if cfg.Stream.FraudRate, err = parseFloat("FRAUD_RATE", defaultFraudRate); err != nil {
		return Config{}, err
	}
	if cfg.Sink.Threshold, err = parseFloat("SCORER_THRESHOLD", defaultScoreThreshold); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("RNG_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RNG_SEED value %q: %w", v, err)
		}
		cfg.Stream.Seed = &seed
	}

	cfg.HTTP.MetricsEnabled = parseBoolWithDefault("SERVER_METRICS_ENABLED", true)
	cfg.HTTP.AllowedOriginsCSV = os.Getenv("SERVER_ALLOWED_ORIGINS")

	if err := cfg.StreamSettings().Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// StreamSettings converts the environment-level settings into the value owned by the stream controller.
func (c Config) StreamSettings() domain.StreamConfig {
	var seed *int64
	if c.Stream.Seed != nil {
		v := *c.Stream.Seed
		seed = &v
	}
	return domain.StreamConfig{
		IntervalSecs: c.Stream.IntervalSecs,
		FraudRate:    c.Stream.FraudRate,
		BatchMin:     c.Stream.BatchMin,
		BatchMax:     c.Stream.BatchMax,
		Topic:        c.Kafka.Topic,
		Brokers:      append([]string(nil), c.Kafka.Brokers...),
		Seed:         seed,
	}
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		return val, nil
	}
	return fallback, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		return val, nil
	}
	return fallback, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}

func splitCSV(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
