package generator

// Per-feature mean and standard deviation, roughly those of the public anonymised card dataset.
var (
	legitFeatureStats = [FeatureCount][2]float64{
		{0.008, 1.93}, {-0.006, 1.64}, {0.012, 1.46}, {-0.008, 1.40}, {0.005, 1.36}, {0.002, 1.33}, {0.010, 1.18},
		{-0.001, 1.16}, {0.004, 1.09}, {0.010, 1.04}, {-0.007, 1.00}, {0.011, 0.95}, {0.000, 0.99}, {0.012, 0.90},
		{0.000, 0.91}, {0.007, 0.84}, {0.012, 0.75}, {0.004, 0.82}, {-0.001, 0.81}, {-0.001, 0.77}, {-0.001, 0.72},
		{0.000, 0.72}, {0.000, 0.62}, {0.000, 0.60}, {0.000, 0.52}, {0.000, 0.48}, {0.000, 0.40}, {0.000, 0.33},
	}
	fraudFeatureStats = [FeatureCount][2]float64{
		{-4.77, 6.78}, {3.62, 4.29}, {-7.03, 7.11}, {4.54, 2.87}, {-3.15, 5.37}, {-1.40, 1.86}, {-5.57, 7.21},
		{0.57, 6.80}, {-2.58, 2.50}, {-5.68, 4.90}, {3.80, 2.68}, {-6.26, 4.65}, {-0.11, 1.10}, {-6.97, 4.28},
		{-0.09, 1.05}, {-4.14, 3.87}, {-6.67, 6.97}, {-2.25, 2.90}, {0.68, 1.54}, {0.37, 1.35}, {0.71, 3.87},
		{0.01, 1.49}, {-0.04, 1.58}, {-0.11, 0.52}, {0.04, 0.80}, {0.05, 0.47}, {0.17, 1.38}, {0.08, 0.55},
	}
)

// DefaultModel returns the built-in model used when no model file is configured.
func DefaultModel() Model {
	minAmount := 0.0
	maxAmount := 25691.16
	cents := 2

	build := func(stats [FeatureCount][2]float64, amountMean, amountStd float64) ClassModel {
		cols := make(map[string]ColumnModel, FeatureCount+1)
		for i, name := range FeatureColumns {
			cols[name] = ColumnModel{
				Distribution: DistributionNormal,
				Mean:         stats[i][0],
				StdDev:       stats[i][1],
			}
		}
		cols[ColumnAmount] = ColumnModel{
			Distribution: DistributionLogNormal,
			Mean:         amountMean,
			StdDev:       amountStd,
			Min:          &minAmount,
			Max:          &maxAmount,
			Round:        &cents,
		}
		return ClassModel{Columns: cols}
	}

	return Model{
		Name: "gaussian",
		Classes: map[int]ClassModel{
			0: build(legitFeatureStats, 3.15, 1.65),
			1: build(fraudFeatureStats, 2.95, 2.05),
		},
	}
}
