package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/vanshika/fraudstream/internal/broker"
	"github.com/vanshika/fraudstream/internal/domain"
	"github.com/vanshika/fraudstream/internal/events"
	"github.com/vanshika/fraudstream/internal/generator"
	"github.com/vanshika/fraudstream/internal/sampling"
)

// Loop stages reported on failure.
const (
	StageGenerate = "generate"
	StageBuild    = "build"
	StagePublish  = "publish"
)

// OpenFunc opens the broker connection used by one run of the loop.
type OpenFunc func(ctx context.Context, cfg domain.StreamConfig) (broker.Publisher, error)

// Recorder receives loop telemetry.
type Recorder interface {
	BatchPublished(legit, fraud int, took time.Duration)
	LoopFailed(stage string)
	SetRunning(running bool)
}

type noopRecorder struct{}

func (noopRecorder) BatchPublished(int, int, time.Duration) {}
func (noopRecorder) LoopFailed(string)                      {}
func (noopRecorder) SetRunning(bool)                        {}

// StreamerOptions carries the optional collaborators of a Streamer.
type StreamerOptions struct {
	Logger   *slog.Logger
	Sampler  *sampling.Sampler
	Recorder Recorder
	// Sleep waits between batches and returns early with ctx.Err() on cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Streamer owns the stream configuration, the broker connection and the single background loop.
type Streamer struct {
	logger   *slog.Logger
	gen      generator.Generator
	sampler  *sampling.Sampler
	builder  *events.Builder
	open     OpenFunc
	recorder Recorder
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	// Only the loop goroutine draws from rng, and at most one loop exists at a time.
	rng *rand.Rand

	// transitionMu serialises Start and Stop.
	transitionMu sync.Mutex

	stateMu sync.Mutex
	cfg     domain.StreamConfig
	state   domain.StreamState
	pub     broker.Publisher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewStreamer validates cfg and returns a stopped Streamer.
func NewStreamer(cfg domain.StreamConfig, gen generator.Generator, open OpenFunc, opts StreamerOptions) (*Streamer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if open == nil {
		return nil, errors.New("open func is required")
	}

	s := &Streamer{
		logger:   opts.Logger,
		gen:      gen,
		sampler:  opts.Sampler,
		builder:  events.NewBuilder(gen.Name()),
		open:     open,
		recorder: opts.Recorder,
		sleep:    opts.Sleep,
		now:      opts.Now,
		cfg:      cfg,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.sampler == nil {
		s.sampler = sampling.New()
	}
	if s.recorder == nil {
		s.recorder = noopRecorder{}
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.now == nil {
		s.now = time.Now
	}

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	s.rng = rand.New(rand.NewSource(seed))

	return s, nil
}

// Start applies overrides, opens the broker connection and spawns the loop.
// It is a no-op returning the current status when the loop is already running.
func (s *Streamer) Start(ctx context.Context, overrides domain.StreamOverrides) (domain.Status, error) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	if s.Running() {
		return s.Status(), nil
	}
	// A loop that failed on its own still needs joining.
	s.halt()

	if err := overrides.Validate(); err != nil {
		return s.Status(), err
	}
	s.stateMu.Lock()
	cfg := s.cfg.Apply(overrides)
	s.stateMu.Unlock()
	if err := cfg.Validate(); err != nil {
		return s.Status(), err
	}

	pub, err := s.open(ctx, cfg)
	if err != nil {
		if !errors.Is(err, domain.ErrBrokerUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrBrokerUnavailable, err)
		}
		return s.Status(), err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.stateMu.Lock()
	s.cfg = cfg
	s.pub = pub
	s.cancel = cancel
	s.done = done
	s.state.Running = true
	s.stateMu.Unlock()
	s.recorder.SetRunning(true)

	s.logger.Info("stream started",
		"topic", cfg.Topic,
		"bootstrap", cfg.Bootstrap(),
		"interval_secs", cfg.IntervalSecs,
		"fraud_rate", cfg.FraudRate,
		"batch_min", cfg.BatchMin,
		"batch_max", cfg.BatchMax,
	)

	go s.loop(loopCtx, cfg, pub, done)
	return s.Status(), nil
}

// Stop cancels the loop, waits for it and closes the broker connection. Safe to call repeatedly.
func (s *Streamer) Stop() {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	wasRunning := s.Running()
	s.halt()
	if wasRunning {
		s.logger.Info("stream stopped")
	}
}

// Status returns a snapshot of the loop telemetry merged with the current configuration.
func (s *Streamer) Status() domain.Status {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return domain.NewStatus(s.state, s.cfg)
}

// Running reports whether the loop is active.
func (s *Streamer) Running() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state.Running
}

// halt cancels and joins the current loop, if any, then releases the publisher.
// Callers hold transitionMu.
func (s *Streamer) halt() {
	s.stateMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.stateMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	s.stateMu.Lock()
	s.state.Running = false
	s.stateMu.Unlock()
	s.recorder.SetRunning(false)

	<-done
	s.closePublisher()
}

func (s *Streamer) loop(ctx context.Context, cfg domain.StreamConfig, pub broker.Publisher, done chan struct{}) {
	defer close(done)

	for {
		if err := s.runBatch(ctx, cfg, pub); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(err)
			return
		}
		if err := s.sleep(ctx, cfg.Interval()); err != nil {
			return
		}
	}
}

func (s *Streamer) runBatch(ctx context.Context, cfg domain.StreamConfig, pub broker.Publisher) error {
	n := sampling.DrawBatchSize(s.rng, cfg.BatchMin, cfg.BatchMax)
	batch, err := s.sampler.Sample(ctx, s.gen, n, cfg.FraudRate, s.rng)
	if err != nil {
		return &loopError{stage: StageGenerate, err: fmt.Errorf("%w: %w", domain.ErrGeneration, err)}
	}

	evs, err := s.builder.Build(batch)
	if err != nil {
		return &loopError{stage: StageBuild, err: err}
	}

	started := s.now()
	if err := pub.Publish(ctx, evs); err != nil {
		return &loopError{stage: StagePublish, err: err}
	}
	sentAt := s.now()

	legit, fraud := batch.Counts()
	s.recorder.BatchPublished(legit, fraud, sentAt.Sub(started))

	size := len(evs)
	s.stateMu.Lock()
	s.state.LastSentAt = &sentAt
	s.state.LastBatchSize = &size
	s.stateMu.Unlock()

	s.logger.Debug("batch published", "size", size, "fraud", fraud, "took", sentAt.Sub(started))
	return nil
}

// fail ends the loop after an unexpected error. No retry happens until the next Start.
func (s *Streamer) fail(err error) {
	stage := "unknown"
	var le *loopError
	if errors.As(err, &le) {
		stage = le.stage
	}
	s.logger.Error("stream loop failed", "stage", stage, "error", err)
	s.recorder.LoopFailed(stage)

	s.stateMu.Lock()
	s.state.Running = false
	s.stateMu.Unlock()
	s.recorder.SetRunning(false)

	s.closePublisher()
}

func (s *Streamer) closePublisher() {
	s.stateMu.Lock()
	pub := s.pub
	s.pub = nil
	s.stateMu.Unlock()

	if pub == nil {
		return
	}
	if err := pub.Close(); err != nil {
		s.logger.Warn("closing publisher failed", "error", err)
	}
}

type loopError struct {
	stage string
	err   error
}

func (e *loopError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *loopError) Unwrap() error {
	return e.err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
