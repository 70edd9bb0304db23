// Package sink consumes transaction events and stores them as month-partitioned parquet files.
package sink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vanshika/fraudstream/internal/scoring"
)

// Record is a transaction event without its producer metadata.
// Decoding ignores the underscore-prefixed fields, so they never reach a file.
type Record struct {
	TransactionID string `json:"transaction_id" parquet:"transaction_id"`
	EventTime     string `json:"event_time" parquet:"event_time"`
	EventTimeMs   int64  `json:"event_time_ms" parquet:"event_time_ms"`

	V1  float64 `json:"V1" parquet:"V1"`
	V2  float64 `json:"V2" parquet:"V2"`
	V3  float64 `json:"V3" parquet:"V3"`
	V4  float64 `json:"V4" parquet:"V4"`
	V5  float64 `json:"V5" parquet:"V5"`
	V6  float64 `json:"V6" parquet:"V6"`
	V7  float64 `json:"V7" parquet:"V7"`
	V8  float64 `json:"V8" parquet:"V8"`
	V9  float64 `json:"V9" parquet:"V9"`
	V10 float64 `json:"V10" parquet:"V10"`
	V11 float64 `json:"V11" parquet:"V11"`
	V12 float64 `json:"V12" parquet:"V12"`
	V13 float64 `json:"V13" parquet:"V13"`
	V14 float64 `json:"V14" parquet:"V14"`
	V15 float64 `json:"V15" parquet:"V15"`
	V16 float64 `json:"V16" parquet:"V16"`
	V17 float64 `json:"V17" parquet:"V17"`
	V18 float64 `json:"V18" parquet:"V18"`
	V19 float64 `json:"V19" parquet:"V19"`
	V20 float64 `json:"V20" parquet:"V20"`
	V21 float64 `json:"V21" parquet:"V21"`
	V22 float64 `json:"V22" parquet:"V22"`
	V23 float64 `json:"V23" parquet:"V23"`
	V24 float64 `json:"V24" parquet:"V24"`
	V25 float64 `json:"V25" parquet:"V25"`
	V26 float64 `json:"V26" parquet:"V26"`
	V27 float64 `json:"V27" parquet:"V27"`
	V28 float64 `json:"V28" parquet:"V28"`

	Amount float64 `json:"Amount" parquet:"Amount"`
	Class  int64   `json:"Class" parquet:"Class"`
}

// DecodeRecord parses one event value.
func DecodeRecord(value []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(value, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

// Time parses event_time. ok is false when the value is not an ISO-8601 timestamp.
func (r Record) Time() (time.Time, bool) {
	return parseEventTime(r.EventTime)
}

// ScoringInput lays the record out in scoring.FeatureColumns order.
func (r Record) ScoringInput(eventTime time.Time) scoring.Input {
	return scoring.Input{
		TransactionID: r.TransactionID,
		EventTime:     eventTime,
		Features: []float64{
			r.V1, r.V2, r.V3, r.V4, r.V5, r.V6, r.V7, r.V8, r.V9, r.V10,
			r.V11, r.V12, r.V13, r.V14, r.V15, r.V16, r.V17, r.V18, r.V19, r.V20,
			r.V21, r.V22, r.V23, r.V24, r.V25, r.V26, r.V27, r.V28,
			r.Amount,
		},
	}
}

// PredictionRow is the stored form of a high-risk transaction.
type PredictionRow struct {
	TransactionID string  `parquet:"transaction_id"`
	EventTime     string  `parquet:"event_time"`
	FraudProb     float64 `parquet:"fraud_prob"`
}

// NewPredictionRow converts a scoring result.
func NewPredictionRow(p scoring.Prediction) PredictionRow {
	return PredictionRow{
		TransactionID: p.TransactionID,
		EventTime:     p.EventTime.UTC().Format(time.RFC3339Nano),
		FraudProb:     p.FraudProb,
	}
}

// Time parses event_time.
func (p PredictionRow) Time() (time.Time, bool) {
	return parseEventTime(p.EventTime)
}

func parseEventTime(value string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
