package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vanshika/fraudstream/internal/broker"
	"github.com/vanshika/fraudstream/internal/config"
	"github.com/vanshika/fraudstream/internal/domain"
	"github.com/vanshika/fraudstream/internal/generator"
	"github.com/vanshika/fraudstream/internal/logging"
	"github.com/vanshika/fraudstream/internal/metrics"
	"github.com/vanshika/fraudstream/internal/sampling"
	"github.com/vanshika/fraudstream/internal/server"
	"github.com/vanshika/fraudstream/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	gen, err := generator.Load(cfg.Generator.ModelPath)
	if err != nil {
		logger.Error("failed to load generator model", "error", err, "path", cfg.Generator.ModelPath)
		os.Exit(1)
	}
	logger.Info("generator loaded", "model", gen.Name())

	opts := service.StreamerOptions{
		Logger:  logger.With("component", "streamer"),
		Sampler: sampling.New(sampling.WithShuffle(cfg.Stream.Shuffle)),
	}
	deps := server.RouterDependencies{
		Health:           broker.Probe{Brokers: cfg.Kafka.Brokers},
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	}
	if cfg.HTTP.MetricsEnabled {
		opts.Recorder = metrics.NewStream(prometheus.DefaultRegisterer)
		deps.RequestMetrics = metrics.NewHTTP(prometheus.DefaultRegisterer)
		deps.Metrics = promhttp.Handler()
	}

	streamer, err := service.NewStreamer(cfg.StreamSettings(), gen, openKafka(cfg.Kafka, logger), opts)
	if err != nil {
		logger.Error("failed to create streamer", "error", err)
		os.Exit(1)
	}
	deps.Stream = server.NewStreamHandlers(logger, streamer)

	srv := server.New(logger, cfg.HTTP, server.NewRouter(logger, deps))

	if cfg.Stream.AutoStart {
		if _, err := streamer.Start(context.Background(), domain.StreamOverrides{}); err != nil {
			logger.Error("auto start failed; use POST /start once the broker is reachable", "error", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	streamer.Stop()
}

// openKafka returns the broker connection factory used on every Start.
func openKafka(kcfg config.KafkaConfig, logger *slog.Logger) service.OpenFunc {
	return func(ctx context.Context, sc domain.StreamConfig) (broker.Publisher, error) {
		return broker.Open(ctx, broker.Options{
			Brokers:        sc.Brokers,
			Topic:          sc.Topic,
			ClientID:       kcfg.ClientID,
			Linger:         kcfg.Linger,
			ProduceTimeout: kcfg.ProduceTimeout,
		}, logger)
	}
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
