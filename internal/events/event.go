package events

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/vanshika/fraudstream/internal/generator"
)

// SchemaVersion is stamped on every produced event.
const SchemaVersion = 1

// EventTimeLayout renders event_time as ISO-8601 UTC with millisecond precision.
const EventTimeLayout = "2006-01-02T15:04:05.000Z"

// TransactionEvent is the flat record published for every generated row.
// Fields prefixed with an underscore are producer metadata that consumers strip.
type TransactionEvent struct {
	TransactionID string `json:"transaction_id"`
	EventTime     string `json:"event_time"`
	EventTimeMs   int64  `json:"event_time_ms"`

	V1  float64 `json:"V1"`
	V2  float64 `json:"V2"`
	V3  float64 `json:"V3"`
	V4  float64 `json:"V4"`
	V5  float64 `json:"V5"`
	V6  float64 `json:"V6"`
	V7  float64 `json:"V7"`
	V8  float64 `json:"V8"`
	V9  float64 `json:"V9"`
	V10 float64 `json:"V10"`
	V11 float64 `json:"V11"`
	V12 float64 `json:"V12"`
	V13 float64 `json:"V13"`
	V14 float64 `json:"V14"`
	V15 float64 `json:"V15"`
	V16 float64 `json:"V16"`
	V17 float64 `json:"V17"`
	V18 float64 `json:"V18"`
	V19 float64 `json:"V19"`
	V20 float64 `json:"V20"`
	V21 float64 `json:"V21"`
	V22 float64 `json:"V22"`
	V23 float64 `json:"V23"`
	V24 float64 `json:"V24"`
	V25 float64 `json:"V25"`
	V26 float64 `json:"V26"`
	V27 float64 `json:"V27"`
	V28 float64 `json:"V28"`

	Amount float64 `json:"Amount"`
	Class  int     `json:"Class"`

	Source        string `json:"_source"`
	SchemaVersion int    `json:"_schema_version"`
	ProduceTimeMs int64  `json:"_produce_time_ms"`
}

// NewTransactionEvent validates row field by field and returns the typed event.
func NewTransactionEvent(transactionID string, eventTime time.Time, row generator.Row) (TransactionEvent, error) {
	if transactionID == "" {
		return TransactionEvent{}, fmt.Errorf("transaction id is required")
	}
	eventTime = eventTime.UTC().Truncate(time.Millisecond)

	ev := TransactionEvent{
		TransactionID: transactionID,
		EventTime:     FormatEventTime(eventTime),
		EventTimeMs:   eventTime.UnixMilli(),
	}

	targets := ev.featureFields()
	for i, name := range generator.FeatureColumns {
		v, err := numericField(row, name)
		if err != nil {
			return TransactionEvent{}, fmt.Errorf("transaction %s: %w", transactionID, err)
		}
		*targets[i] = v
	}

	amount, err := numericField(row, generator.ColumnAmount)
	if err != nil {
		return TransactionEvent{}, fmt.Errorf("transaction %s: %w", transactionID, err)
	}
	ev.Amount = amount

	class, err := numericField(row, generator.ColumnClass)
	if err != nil {
		return TransactionEvent{}, fmt.Errorf("transaction %s: %w", transactionID, err)
	}
	switch class {
	case 0:
		ev.Class = 0
	case 1:
		ev.Class = 1
	default:
		return TransactionEvent{}, fmt.Errorf("transaction %s: class %v out of range, want 0 or 1", transactionID, class)
	}

	return ev, nil
}

// Features returns V1..V28 in declaration order.
func (e TransactionEvent) Features() [generator.FeatureCount]float64 {
	var out [generator.FeatureCount]float64
	for i, p := range e.featureFields() {
		out[i] = *p
	}
	return out
}

func (e *TransactionEvent) featureFields() []*float64 {
	return []*float64{
		&e.V1, &e.V2, &e.V3, &e.V4, &e.V5, &e.V6, &e.V7, &e.V8, &e.V9, &e.V10,
		&e.V11, &e.V12, &e.V13, &e.V14, &e.V15, &e.V16, &e.V17, &e.V18, &e.V19, &e.V20,
		&e.V21, &e.V22, &e.V23, &e.V24, &e.V25, &e.V26, &e.V27, &e.V28,
	}
}

// Encode renders the canonical wire value of an event.
func Encode(ev TransactionEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// FormatEventTime renders t in EventTimeLayout.
func FormatEventTime(t time.Time) string {
	return t.UTC().Format(EventTimeLayout)
}

func numericField(row generator.Row, name string) (float64, error) {
	v, ok := row[name]
	if !ok {
		return 0, fmt.Errorf("missing field %s", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("field %s is not a finite number", name)
	}
	return v, nil
}
