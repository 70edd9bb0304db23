// Package scoring assigns fraud probabilities to transaction feature vectors.
package scoring

import (
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vanshika/fraudstream/internal/generator"
)

// DefaultThreshold is the probability above which a transaction is reported as high risk.
const DefaultThreshold = 0.2

// FeatureColumns is the fixed order in which scorers read a transaction.
var FeatureColumns = append(append([]string(nil), generator.FeatureColumns...), generator.ColumnAmount)

// Scorer returns one fraud probability per feature vector. Vectors follow FeatureColumns.
type Scorer interface {
	Score(ctx context.Context, features [][]float64) ([]float64, error)
}

// LogisticModel is a linear model over FeatureColumns.
type LogisticModel struct {
	Name      string             `yaml:"name"`
	Intercept float64            `yaml:"intercept"`
	Weights   map[string]float64 `yaml:"weights"`
	// LogAmount scores log1p(Amount) instead of the raw amount.
	LogAmount bool `yaml:"log_amount"`
}

// DefaultLogisticModel weighs the components that separate the classes most in the public dataset.
func DefaultLogisticModel() LogisticModel {
	return LogisticModel{
		Name:      "logistic-default",
		Intercept: -8,
		Weights: map[string]float64{
			"V4":  0.8,
			"V10": -0.6,
			"V11": 0.6,
			"V12": -0.6,
			"V14": -1.0,
			"V17": -0.5,
		},
		LogAmount: true,
	}
}

// LoadLogisticModel reads a YAML model file, or returns the default model when path is empty.
func LoadLogisticModel(path string) (LogisticModel, error) {
	if path == "" {
		return DefaultLogisticModel(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return LogisticModel{}, fmt.Errorf("read scorer model %s: %w", path, err)
	}
	var m LogisticModel
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return LogisticModel{}, fmt.Errorf("decode scorer model %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return LogisticModel{}, fmt.Errorf("scorer model %s: %w", path, err)
	}
	return m, nil
}

// Validate rejects weights on unknown columns and non-finite coefficients.
func (m LogisticModel) Validate() error {
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return fmt.Errorf("intercept must be finite")
	}
	known := make(map[string]struct{}, len(FeatureColumns))
	for _, name := range FeatureColumns {
		known[name] = struct{}{}
	}
	for name, w := range m.Weights {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("weight for unknown column %q", name)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight for %s must be finite", name)
		}
	}
	return nil
}

// LogisticScorer scores with a LogisticModel.
type LogisticScorer struct {
	name      string
	intercept float64
	weights   []float64
	logAmount bool
}

// NewLogisticScorer validates m and lays its weights out in FeatureColumns order.
func NewLogisticScorer(m LogisticModel) (*LogisticScorer, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	weights := make([]float64, len(FeatureColumns))
	for i, name := range FeatureColumns {
		weights[i] = m.Weights[name]
	}
	return &LogisticScorer{
		name:      m.Name,
		intercept: m.Intercept,
		weights:   weights,
		logAmount: m.LogAmount,
	}, nil
}

// Name returns the model name.
func (s *LogisticScorer) Name() string {
	return s.name
}

// Score implements Scorer.
func (s *LogisticScorer) Score(ctx context.Context, features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	amountIdx := len(FeatureColumns) - 1
	for i, row := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) != len(s.weights) {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), len(s.weights))
		}
		z := s.intercept
		for j, x := range row {
			if j == amountIdx && s.logAmount {
				x = math.Log1p(math.Max(x, 0))
			}
			z += s.weights[j] * x
		}
		out[i] = 1 / (1 + math.Exp(-z))
	}
	return out, nil
}

var _ Scorer = (*LogisticScorer)(nil)
