package generator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Supported column distributions.
const (
	DistributionNormal    = "normal"
	DistributionLogNormal = "lognormal"
)

// Model is the serialisable description of a class-conditional row model.
type Model struct {
	Name    string             `yaml:"name"`
	Classes map[int]ClassModel `yaml:"classes"`
}

// ClassModel holds the column distributions of one class label.
type ClassModel struct {
	Columns map[string]ColumnModel `yaml:"columns"`
}

// ColumnModel parameterises a single column. For lognormal columns Mean and StdDev apply to the log.
type ColumnModel struct {
	Distribution string   `yaml:"distribution"`
	Mean         float64  `yaml:"mean"`
	StdDev       float64  `yaml:"stddev"`
	Min          *float64 `yaml:"min"`
	Max          *float64 `yaml:"max"`
	Round        *int     `yaml:"round"`
}

// Load returns the model stored at path, or the built-in model when path is empty.
func Load(path string) (*GaussianModel, error) {
	if path == "" {
		return NewGaussianModel(DefaultModel())
	}
	m, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	return NewGaussianModel(m)
}

// LoadModel reads a YAML model file.
func LoadModel(path string) (Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("read model %s: %w", path, err)
	}

	var m Model
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Model{}, fmt.Errorf("decode model %s: %w", path, err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return Model{}, fmt.Errorf("model %s: %w", path, err)
	}
	return m, nil
}

func (m *Model) applyDefaults() {
	if m.Name == "" {
		m.Name = "gaussian"
	}
	for label, class := range m.Classes {
		for name, col := range class.Columns {
			if col.Distribution == "" {
				col.Distribution = DistributionNormal
				class.Columns[name] = col
			}
		}
		m.Classes[label] = class
	}
}

// Validate checks that both labels define every feature column and Amount.
func (m Model) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	for _, label := range []int{0, 1} {
		class, ok := m.Classes[label]
		if !ok {
			return fmt.Errorf("class %d is not defined", label)
		}
		required := append(append([]string(nil), FeatureColumns...), ColumnAmount)
		for _, name := range required {
			col, ok := class.Columns[name]
			if !ok {
				return fmt.Errorf("class %d: column %s is not defined", label, name)
			}
			if col.StdDev < 0 {
				return fmt.Errorf("class %d: column %s has negative stddev", label, name)
			}
			switch col.Distribution {
			case DistributionNormal, DistributionLogNormal:
			default:
				return fmt.Errorf("class %d: column %s has unknown distribution %q", label, name, col.Distribution)
			}
			if col.Min != nil && col.Max != nil && *col.Min > *col.Max {
				return fmt.Errorf("class %d: column %s has min > max", label, name)
			}
		}
	}
	return nil
}
