package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vanshika/fraudstream/internal/config"
	"github.com/vanshika/fraudstream/internal/logging"
	"github.com/vanshika/fraudstream/internal/metrics"
	"github.com/vanshika/fraudstream/internal/scoring"
	"github.com/vanshika/fraudstream/internal/sink"
)

func main() {
	var (
		eventsPath  = flag.String("events", "", "write records from an events.json file instead of consuming the topic")
		grain       = flag.String("grain", "", "dataset directory under the base dir (overrides SINK_GRAIN)")
		score       = flag.Bool("score", false, "write high-risk predictions instead of raw records (or set SINK_SCORE)")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address when set")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "sink")

	if *grain != "" {
		cfg.Sink.Grain = *grain
	}
	scoringMode := *score || cfg.Sink.Score

	var scorer scoring.Scorer
	if scoringMode {
		model, err := scoring.LoadLogisticModel(cfg.Sink.ScorerPath)
		if err != nil {
			logger.Error("failed to load scorer model", "error", err)
			os.Exit(1)
		}
		ls, err := scoring.NewLogisticScorer(model)
		if err != nil {
			logger.Error("invalid scorer model", "error", err)
			os.Exit(1)
		}
		scorer = ls
		logger.Info("scoring enabled", "model", ls.Name(), "threshold", cfg.Sink.Threshold)
	}

	writerOpts := []sink.WriterOption{sink.WithWriterLogger(logger)}
	if *metricsAddr != "" {
		writerOpts = append(writerOpts, sink.WithFileRecorder(metrics.NewSink(prometheus.DefaultRegisterer)))
		go serveMetrics(logger, *metricsAddr)
	}
	writer := sink.NewWriter(sink.WriterConfig{
		BaseDir:        cfg.Sink.BaseDir,
		Grain:          cfg.Sink.Grain,
		FilenamePrefix: cfg.Sink.FilenamePrefix,
		Workers:        cfg.Sink.Workers,
	}, writerOpts...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *eventsPath != "" {
		if err := replayFile(ctx, logger, writer, scorer, cfg.Sink.Threshold, *eventsPath); err != nil {
			logger.Error("replay failed", "error", err, "path", *eventsPath)
			os.Exit(1)
		}
		return
	}

	reader := sink.NewReader(sink.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Sink.GroupID,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("closing reader failed", "error", err)
		}
	}()

	consumer := sink.NewConsumer(reader, writer, scorer, sink.ConsumerConfig{
		FlushSize:     cfg.Sink.FlushSize,
		FlushInterval: cfg.Sink.FlushInterval,
		Threshold:     cfg.Sink.Threshold,
	}, logger)

	logger.Info("consuming",
		"topic", cfg.Kafka.Topic,
		"group", cfg.Sink.GroupID,
		"base_dir", cfg.Sink.BaseDir,
		"grain", cfg.Sink.Grain,
	)
	if err := consumer.Run(ctx); err != nil {
		logger.Error("sink stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("sink stopped")
}

// replayFile stores the records of a datagen events.json file in one flush.
func replayFile(ctx context.Context, logger *slog.Logger, writer *sink.Writer, scorer scoring.Scorer, threshold float64, path string) error {
	var records []sink.Record
	if err := loadJSON(path, &records); err != nil {
		return err
	}

	start := time.Now()
	paths, err := sink.Store(ctx, writer, scorer, threshold, records)
	if err != nil {
		return err
	}
	logger.Info("replay complete", "records", len(records), "files", len(paths), "duration", time.Since(start).String())
	return nil
}

func loadJSON(path string, target any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "error", err)
	}
}
