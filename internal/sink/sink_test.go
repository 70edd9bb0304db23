package sink

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/segmentio/kafka-go"
)

type fakeSource struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (f *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeSource) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type countingRecorder struct {
	mu    sync.Mutex
	files int
	rows  int
}

func (c *countingRecorder) FileWritten(grain string, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files++
	c.rows += rows
}

func eventValue(t *testing.T, id, eventTime string, v14 float64) []byte {
	t.Helper()
	payload := map[string]any{
		"transaction_id":   id,
		"event_time":       eventTime,
		"event_time_ms":    int64(1),
		"Amount":           12.5,
		"Class":            0,
		"_source":          "gaussian",
		"_schema_version":  1,
		"_produce_time_ms": int64(2),
	}
	for i := 1; i <= 28; i++ {
		payload["V"+strconv.Itoa(i)] = 0.0
	}
	payload["V14"] = v14
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func fixedWriter(dir string, opts ...WriterOption) *Writer {
	clock := func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC) }
	w := NewWriter(WriterConfig{BaseDir: dir, Grain: "transactions", FilenamePrefix: "part", Workers: 2},
		append([]WriterOption{WithWriterClock(clock)}, opts...)...)
	return w
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDecodeRecordDropsProducerMetadata(t *testing.T) {
	rec, err := DecodeRecord(eventValue(t, "tx-1", "2024-05-31T23:59:59.999Z", -3))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.TransactionID != "tx-1" || rec.V14 != -3 || rec.Amount != 12.5 {
		t.Fatalf("unexpected record %+v", rec)
	}
	ts, ok := rec.Time()
	if !ok || ts.Month() != time.May {
		t.Fatalf("unexpected event time %v %v", ts, ok)
	}
	in := rec.ScoringInput(ts)
	if len(in.Features) != 29 || in.Features[13] != -3 || in.Features[28] != 12.5 {
		t.Fatalf("unexpected feature layout %v", in.Features)
	}
}

func TestWriterPartitionsByMonth(t *testing.T) {
	dir := t.TempDir()
	rec := &countingRecorder{}
	w := fixedWriter(dir, WithFileRecorder(rec))
	w.suffix = func() string { return "abcdef12" }

	rows := []Record{
		{TransactionID: "a", EventTime: "2024-05-31T23:59:59.999Z"},
		{TransactionID: "b", EventTime: "2024-06-01T00:00:00.000Z"},
		{TransactionID: "c", EventTime: "2024-06-15T10:00:00.000Z"},
		{TransactionID: "bad", EventTime: "yesterday"},
	}

	paths, err := w.WriteRecords(context.Background(), rows)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	want := []string{
		filepath.Join(dir, "transactions", "year=2024", "month=05", "part-20240601T083000-abcdef12.parquet"),
		filepath.Join(dir, "transactions", "year=2024", "month=06", "part-20240601T083000-abcdef12.parquet"),
	}
	if len(paths) != len(want) {
		t.Fatalf("unexpected paths %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("path %d = %s, want %s", i, paths[i], want[i])
		}
	}

	june, err := parquet.ReadFile[Record](paths[1])
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if len(june) != 2 || june[0].TransactionID != "b" || june[1].TransactionID != "c" {
		t.Fatalf("unexpected june rows %+v", june)
	}
	if rec.files != 2 || rec.rows != 3 {
		t.Fatalf("recorder saw %d files / %d rows", rec.files, rec.rows)
	}
}

func TestWriterSkipsEmptyInput(t *testing.T) {
	w := fixedWriter(t.TempDir())
	paths, err := w.WriteRecords(context.Background(), []Record{{EventTime: "garbage"}})
	if err != nil || len(paths) != 0 {
		t.Fatalf("expected no files, got %v, %v", paths, err)
	}
}

func TestConsumerFlushesBySizeAndOnShutdown(t *testing.T) {
	dir := t.TempDir()
	source := &fakeSource{queue: []kafka.Message{
		{Offset: 1, Value: eventValue(t, "t1", "2024-06-01T00:00:00.000Z", 0)},
		{Offset: 2, Value: []byte("not json")},
		{Offset: 3, Value: eventValue(t, "t3", "2024-06-02T00:00:00.000Z", 0)},
	}}
	consumer := NewConsumer(source, fixedWriter(dir), nil, ConsumerConfig{FlushSize: 2, FlushInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(ctx) }()

	waitFor(t, "size flush", func() bool { return source.commitCount() == 2 })
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
	if source.commitCount() != 3 {
		t.Fatalf("expected 3 committed messages, got %d", source.commitCount())
	}

	files, err := filepath.Glob(filepath.Join(dir, "transactions", "year=2024", "month=06", "*.parquet"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	total := 0
	for _, f := range files {
		rows, err := parquet.ReadFile[Record](f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		total += len(rows)
	}
	if total != 2 {
		t.Fatalf("expected 2 stored rows, got %d", total)
	}
}

func TestConsumerFlushesOnInterval(t *testing.T) {
	source := &fakeSource{queue: []kafka.Message{
		{Offset: 1, Value: eventValue(t, "t1", "2024-06-01T00:00:00.000Z", 0)},
	}}
	consumer := NewConsumer(source, fixedWriter(t.TempDir()), nil, ConsumerConfig{FlushSize: 100, FlushInterval: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(ctx) }()

	waitFor(t, "interval flush", func() bool { return source.commitCount() == 1 })
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
}

type thresholdScorer struct{}

// Score returns 0.9 for rows with a strongly negative V14 and 0.01 otherwise.
func (thresholdScorer) Score(ctx context.Context, features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		if row[13] < -5 {
			out[i] = 0.9
		} else {
			out[i] = 0.01
		}
	}
	return out, nil
}

func TestConsumerScoringModeWritesHighRiskPredictions(t *testing.T) {
	dir := t.TempDir()
	source := &fakeSource{queue: []kafka.Message{
		{Offset: 1, Value: eventValue(t, "late", "2024-06-01T00:00:02.000Z", -7)},
		{Offset: 2, Value: eventValue(t, "safe", "2024-06-01T00:00:00.000Z", 0)},
		{Offset: 3, Value: eventValue(t, "early", "2024-06-01T00:00:01.000Z", -6)},
	}}
	writer := NewWriter(WriterConfig{BaseDir: dir, Grain: "fraud_high_risk"})
	consumer := NewConsumer(source, writer, thresholdScorer{}, ConsumerConfig{FlushSize: 3, FlushInterval: time.Hour, Threshold: 0.2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(ctx) }()
	waitFor(t, "flush", func() bool { return source.commitCount() == 3 })
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "fraud_high_risk", "year=2024", "month=06", "*.parquet"))
	if len(files) != 1 {
		t.Fatalf("expected one prediction file, got %v", files)
	}
	rows, err := parquet.ReadFile[PredictionRow](files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 || rows[0].TransactionID != "early" || rows[1].TransactionID != "late" {
		t.Fatalf("unexpected predictions %+v", rows)
	}
	if rows[0].FraudProb != 0.9 {
		t.Fatalf("unexpected probability %v", rows[0].FraudProb)
	}
}

func TestConsumerDoesNotCommitFailedWrites(t *testing.T) {
	base := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(base, []byte("file, not dir"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	source := &fakeSource{queue: []kafka.Message{
		{Offset: 1, Value: eventValue(t, "t1", "2024-06-01T00:00:00.000Z", 0)},
	}}
	consumer := NewConsumer(source, fixedWriter(base), nil, ConsumerConfig{FlushSize: 1, FlushInterval: time.Hour}, nil)

	err := consumer.Run(context.Background())
	var flushErr *FlushError
	if !errors.As(err, &flushErr) {
		t.Fatalf("expected FlushError, got %v", err)
	}
	if source.commitCount() != 0 {
		t.Fatal("failed flush must not commit offsets")
	}
}

func TestRunPoolAggregatesErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	err := runPool(context.Background(), 3, 5, func(idx int) error {
		switch idx {
		case 1:
			return errA
		case 3:
			return errB
		}
		return nil
	})

	var flushErr *FlushError
	if !errors.As(err, &flushErr) || len(flushErr.Errors) != 2 {
		t.Fatalf("expected two aggregated errors, got %v", err)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both causes reachable, got %v", err)
	}
}
