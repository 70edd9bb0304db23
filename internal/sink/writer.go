package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// FileRecorder receives one call per parquet file written.
type FileRecorder interface {
	FileWritten(grain string, rows int)
}

// WriterConfig locates the partitioned output.
type WriterConfig struct {
	BaseDir        string
	Grain          string
	FilenamePrefix string
	Workers        int
}

// WriterOption customises a Writer.
type WriterOption func(*Writer)

// WithWriterClock overrides the clock used in file names.
func WithWriterClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// WithFileRecorder reports written files to r.
func WithFileRecorder(r FileRecorder) WriterOption {
	return func(w *Writer) { w.recorder = r }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = logger }
}

// Writer stores rows under <base>/<grain>/year=YYYY/month=MM/, one file per partition per flush.
type Writer struct {
	cfg      WriterConfig
	now      func() time.Time
	suffix   func() string
	recorder FileRecorder
	logger   *slog.Logger
}

// NewWriter returns a Writer for cfg.
func NewWriter(cfg WriterConfig, opts ...WriterOption) *Writer {
	if cfg.FilenamePrefix == "" {
		cfg.FilenamePrefix = "part"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	w := &Writer{
		cfg:    cfg,
		now:    time.Now,
		suffix: randomSuffix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Grain returns the dataset directory name under the base directory.
func (w *Writer) Grain() string {
	return w.cfg.Grain
}

// WriteRecords stores raw transaction records.
func (w *Writer) WriteRecords(ctx context.Context, rows []Record) ([]string, error) {
	return WritePartitioned(ctx, w, rows, Record.Time)
}

// WritePredictions stores scored transactions.
func (w *Writer) WritePredictions(ctx context.Context, rows []PredictionRow) ([]string, error) {
	return WritePartitioned(ctx, w, rows, PredictionRow.Time)
}

type partitionKey struct {
	year  int
	month time.Month
}

// WritePartitioned groups rows by the UTC year and month of their event time and writes each group.
// Rows whose event time cannot be parsed are dropped. The returned paths are sorted.
func WritePartitioned[T any](ctx context.Context, w *Writer, rows []T, eventTime func(T) (time.Time, bool)) ([]string, error) {
	groups := make(map[partitionKey][]T)
	dropped := 0
	for _, row := range rows {
		t, ok := eventTime(row)
		if !ok {
			dropped++
			continue
		}
		key := partitionKey{year: t.Year(), month: t.Month()}
		groups[key] = append(groups[key], row)
	}
	if dropped > 0 {
		w.logger.Warn("dropped rows with unparsable event_time", "grain", w.cfg.Grain, "count", dropped)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	keys := make([]partitionKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	filename := fmt.Sprintf("%s-%s-%s.parquet", w.cfg.FilenamePrefix, w.now().UTC().Format("20060102T150405"), w.suffix())
	paths := make([]string, len(keys))
	for i, key := range keys {
		paths[i] = filepath.Join(w.partitionDir(key), filename)
	}

	err := runPool(ctx, w.cfg.Workers, len(keys), func(idx int) error {
		part := groups[keys[idx]]
		if err := os.MkdirAll(filepath.Dir(paths[idx]), 0o755); err != nil {
			return fmt.Errorf("create partition dir: %w", err)
		}
		if err := parquet.WriteFile(paths[idx], part); err != nil {
			return fmt.Errorf("write %s: %w", paths[idx], err)
		}
		if w.recorder != nil {
			w.recorder.FileWritten(w.cfg.Grain, len(part))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("wrote partitioned files", "grain", w.cfg.Grain, "rows", len(rows)-dropped, "files", len(paths))
	return paths, nil
}

func (w *Writer) partitionDir(key partitionKey) string {
	return filepath.Join(
		w.cfg.BaseDir,
		w.cfg.Grain,
		fmt.Sprintf("year=%d", key.year),
		fmt.Sprintf("month=%02d", int(key.month)),
	)
}

func randomSuffix() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:4])
}
