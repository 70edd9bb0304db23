// Package sampling draws class-balanced batches of synthetic rows.
package sampling

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/vanshika/fraudstream/internal/domain"
	"github.com/vanshika/fraudstream/internal/generator"
)

// Batch is one set of rows sharing a single event time.
type Batch struct {
	EventTime time.Time
	Rows      []SampledRow
}

// SampledRow is a generated row stamped with its transaction id.
type SampledRow struct {
	TransactionID string
	Class         int
	Values        generator.Row
}

// Counts returns the number of class 0 and class 1 rows.
func (b Batch) Counts() (legit, fraud int) {
	for _, row := range b.Rows {
		if row.Class == 1 {
			fraud++
		} else {
			legit++
		}
	}
	return legit, fraud
}

// Option customises a Sampler.
type Option func(*Sampler)

// WithClock overrides the clock used for the batch event time.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithIDSource overrides the transaction id source.
func WithIDSource(newID func() string) Option {
	return func(s *Sampler) { s.newID = newID }
}

// WithShuffle toggles row shuffling.
func WithShuffle(enabled bool) Option {
	return func(s *Sampler) { s.shuffle = enabled }
}

// Sampler turns a batch request into generated rows.
type Sampler struct {
	now     func() time.Time
	newID   func() string
	shuffle bool
}

// New returns a Sampler that shuffles by default.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		now:     time.Now,
		newID:   newTransactionID,
		shuffle: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample draws nRows rows with a Binomial(nRows, fraudRate) number of class 1 rows.
// All randomness comes from rng, so a seeded rng reproduces the batch.
func (s *Sampler) Sample(ctx context.Context, gen generator.Generator, nRows int, fraudRate float64, rng *rand.Rand) (Batch, error) {
	if err := domain.ValidateFraudRate(fraudRate); err != nil {
		return Batch{}, err
	}
	if nRows < 0 {
		return Batch{}, &domain.ValidationError{Field: "n_rows", Reason: "must be >= 0"}
	}
	if nRows == 0 {
		return Batch{EventTime: s.now().UTC()}, nil
	}

	fraud := Binomial(rng, nRows, fraudRate)
	legit := nRows - fraud

	rows := make([]SampledRow, 0, nRows)
	for _, req := range []struct{ class, n int }{{0, legit}, {1, fraud}} {
		if req.n == 0 {
			continue
		}
		generated, err := gen.Generate(ctx, rng, req.class, req.n)
		if err != nil {
			return Batch{}, fmt.Errorf("generate %d rows of class %d: %w", req.n, req.class, err)
		}
		for _, values := range generated {
			label, err := coerceLabel(values[generator.ColumnClass])
			if err != nil {
				return Batch{}, err
			}
			values[generator.ColumnClass] = float64(label)
			rows = append(rows, SampledRow{Class: label, Values: values})
		}
	}

	eventTime := s.now().UTC()
	for i := range rows {
		rows[i].TransactionID = s.newID()
	}

	if s.shuffle && len(rows) > 1 {
		sub := rand.New(rand.NewSource(rng.Int63()))
		sub.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	}

	return Batch{EventTime: eventTime, Rows: rows}, nil
}

// DrawBatchSize picks a batch size uniformly from [min, max].
func DrawBatchSize(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}

// Binomial draws the number of successes in n Bernoulli(p) trials.
func Binomial(rng *rand.Rand, n int, p float64) int {
	switch {
	case n <= 0 || p <= 0:
		return 0
	case p >= 1:
		return n
	}
	k := 0
	for i := 0; i < n; i++ {
		if rng.Float64() < p {
			k++
		}
	}
	return k
}

func coerceLabel(v float64) (int, error) {
	label := int(math.Round(v))
	if math.IsNaN(v) || (label != 0 && label != 1) {
		return 0, fmt.Errorf("generator returned class %v, want 0 or 1", v)
	}
	return label, nil
}

func newTransactionID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}
