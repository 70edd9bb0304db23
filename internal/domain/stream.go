package domain

import (
	"strings"
	"time"
)

// StreamConfig holds the settings the streaming loop runs with.
type StreamConfig struct {
	IntervalSecs int
	FraudRate    float64
	BatchMin     int
	BatchMax     int
	Topic        string
	Brokers      []string
	Seed         *int64
}

// StreamOverrides carries the optional values accepted by Start. Nil fields keep the current value.
type StreamOverrides struct {
	IntervalSecs *int
	FraudRate    *float64
	BatchMin     *int
	BatchMax     *int
}

// StreamState is the runtime telemetry owned by the stream controller.
type StreamState struct {
	Running       bool
	LastSentAt    *time.Time
	LastBatchSize *int
}

// Status is the read-only snapshot reported to operators.
type Status struct {
	Running         bool     `json:"running"`
	LastSentAtEpoch *float64 `json:"last_sent_at_epoch"`
	LastBatchSize   *int     `json:"last_batch_size"`
	IntervalSecs    int      `json:"interval_secs"`
	FraudRate       float64  `json:"fraud_rate"`
	BatchMin        int      `json:"batch_min"`
	BatchMax        int      `json:"batch_max"`
	Topic           string   `json:"topic"`
	Bootstrap       string   `json:"bootstrap"`
}

// Interval returns the pause between two batches.
func (c StreamConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

// Bootstrap renders the broker list the way it is configured.
func (c StreamConfig) Bootstrap() string {
	return strings.Join(c.Brokers, ",")
}

// Validate checks every invariant the loop relies on.
func (c StreamConfig) Validate() error {
	if c.IntervalSecs < 1 {
		return invalid("interval_secs", "must be >= 1")
	}
	if err := validateFraudRate(c.FraudRate); err != nil {
		return err
	}
	if c.BatchMin < 1 {
		return invalid("batch_min", "must be >= 1")
	}
	if c.BatchMax < 1 {
		return invalid("batch_max", "must be >= 1")
	}
	if c.BatchMin > c.BatchMax {
		return invalid("batch_min", "must be <= batch_max")
	}
	if strings.TrimSpace(c.Topic) == "" {
		return invalid("topic", "is required")
	}
	if len(c.Brokers) == 0 {
		return invalid("bootstrap", "at least one broker address is required")
	}
	return nil
}

// Validate checks the bounds of the supplied fields without looking at the current configuration.
func (o StreamOverrides) Validate() error {
	if o.IntervalSecs != nil && *o.IntervalSecs < 1 {
		return invalid("interval_secs", "must be >= 1")
	}
	if o.FraudRate != nil {
		if err := validateFraudRate(*o.FraudRate); err != nil {
			return err
		}
	}
	if o.BatchMin != nil && *o.BatchMin < 1 {
		return invalid("batch_min", "must be >= 1")
	}
	if o.BatchMax != nil && *o.BatchMax < 1 {
		return invalid("batch_max", "must be >= 1")
	}
	return nil
}

// Apply returns a copy of c with the non-nil overrides merged in.
func (c StreamConfig) Apply(o StreamOverrides) StreamConfig {
	merged := c
	merged.Brokers = append([]string(nil), c.Brokers...)
	if o.IntervalSecs != nil {
		merged.IntervalSecs = *o.IntervalSecs
	}
	if o.FraudRate != nil {
		merged.FraudRate = *o.FraudRate
	}
	if o.BatchMin != nil {
		merged.BatchMin = *o.BatchMin
	}
	if o.BatchMax != nil {
		merged.BatchMax = *o.BatchMax
	}
	return merged
}

// ValidateFraudRate reports whether rate is a probability.
func ValidateFraudRate(rate float64) error {
	return validateFraudRate(rate)
}

func validateFraudRate(rate float64) error {
	// NaN fails both comparisons, so it is rejected as well.
	if !(rate >= 0 && rate <= 1) {
		return invalid("fraud_rate", "must be within [0, 1]")
	}
	return nil
}

// NewStatus merges state and configuration into a Status snapshot.
func NewStatus(state StreamState, cfg StreamConfig) Status {
	status := Status{
		Running:      state.Running,
		IntervalSecs: cfg.IntervalSecs,
		FraudRate:    cfg.FraudRate,
		BatchMin:     cfg.BatchMin,
		BatchMax:     cfg.BatchMax,
		Topic:        cfg.Topic,
		Bootstrap:    cfg.Bootstrap(),
	}
	if state.LastSentAt != nil {
		epoch := float64(state.LastSentAt.UnixNano()) / float64(time.Second)
		status.LastSentAtEpoch = &epoch
	}
	if state.LastBatchSize != nil {
		size := *state.LastBatchSize
		status.LastBatchSize = &size
	}
	return status
}
