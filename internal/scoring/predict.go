package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Input is one transaction to score. Features follow FeatureColumns.
type Input struct {
	TransactionID string
	EventTime     time.Time
	Features      []float64
}

// Prediction is a scored transaction.
type Prediction struct {
	TransactionID string
	EventTime     time.Time
	FraudProb     float64
}

// ScoreRecords scores inputs, orders them by event time and keeps those strictly above threshold.
func ScoreRecords(ctx context.Context, scorer Scorer, inputs []Input, threshold float64) ([]Prediction, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	features := make([][]float64, len(inputs))
	for i, in := range inputs {
		features[i] = in.Features
	}
	probs, err := scorer.Score(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("score %d records: %w", len(inputs), err)
	}
	if len(probs) != len(inputs) {
		return nil, fmt.Errorf("scorer returned %d probabilities for %d records", len(probs), len(inputs))
	}

	out := make([]Prediction, 0, len(inputs))
	for i, in := range inputs {
		if probs[i] > threshold {
			out = append(out, Prediction{
				TransactionID: in.TransactionID,
				EventTime:     in.EventTime,
				FraudProb:     probs[i],
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventTime.Before(out[j].EventTime)
	})
	return out, nil
}
