package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// Column names produced by every generator.
const (
	ColumnAmount = "Amount"
	ColumnClass  = "Class"
	FeatureCount = 28
)

// FeatureColumns lists the anonymised feature columns in declaration order (V1..V28).
var FeatureColumns = func() []string {
	cols := make([]string, FeatureCount)
	for i := range cols {
		cols[i] = fmt.Sprintf("V%d", i+1)
	}
	return cols
}()

// Row is a single generated record keyed by column name, the shape a tabular model returns.
type Row map[string]float64

// Generator produces rows conditioned on a class label.
type Generator interface {
	// Name identifies the model in producer metadata.
	Name() string
	// Generate returns n rows labelled with class, drawing randomness only from rng.
	Generate(ctx context.Context, rng *rand.Rand, class, n int) ([]Row, error)
}

// GaussianModel draws every column independently from a class-conditional distribution.
type GaussianModel struct {
	model   Model
	columns []string
}

// NewGaussianModel validates m and returns a Generator backed by it.
func NewGaussianModel(m Model) (*GaussianModel, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	columns := append(append([]string(nil), FeatureColumns...), ColumnAmount)
	return &GaussianModel{model: m, columns: columns}, nil
}

// Name implements Generator.
func (g *GaussianModel) Name() string {
	return g.model.Name
}

// Generate implements Generator. It respects context cancellation.
func (g *GaussianModel) Generate(ctx context.Context, rng *rand.Rand, class, n int) ([]Row, error) {
	if n < 0 {
		return nil, fmt.Errorf("row count must be >= 0, got %d", n)
	}
	classModel, ok := g.model.Classes[class]
	if !ok {
		return nil, fmt.Errorf("model %q has no class %d", g.model.Name, class)
	}

	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make(Row, len(g.columns)+1)
		// Fixed column order keeps draws reproducible for a seeded rng.
		for _, name := range g.columns {
			row[name] = classModel.Columns[name].draw(rng)
		}
		row[ColumnClass] = float64(class)
		rows[i] = row
	}
	return rows, nil
}

func (c ColumnModel) draw(rng *rand.Rand) float64 {
	value := c.Mean + c.StdDev*rng.NormFloat64()
	if c.Distribution == DistributionLogNormal {
		value = math.Exp(value)
	}
	if c.Min != nil && value < *c.Min {
		value = *c.Min
	}
	if c.Max != nil && value > *c.Max {
		value = *c.Max
	}
	if c.Round != nil {
		scale := math.Pow(10, float64(*c.Round))
		value = math.Round(value*scale) / scale
	}
	return value
}
