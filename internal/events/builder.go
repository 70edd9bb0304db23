package events

import (
	"time"

	"github.com/vanshika/fraudstream/internal/sampling"
)

// Builder maps sampled batches into publishable events.
type Builder struct {
	source string
	now    func() time.Time
}

// NewBuilder returns a Builder that tags events with source.
func NewBuilder(source string) *Builder {
	return &Builder{source: source, now: time.Now}
}

// Build converts every row of batch. The first invalid row fails the whole batch.
func (b *Builder) Build(batch sampling.Batch) ([]TransactionEvent, error) {
	out := make([]TransactionEvent, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		ev, err := NewTransactionEvent(row.TransactionID, batch.EventTime, row.Values)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}

	produceMs := b.now().UnixMilli()
	for i := range out {
		out[i].Source = b.source
		out[i].SchemaVersion = SchemaVersion
		out[i].ProduceTimeMs = max(produceMs, out[i].EventTimeMs)
	}
	return out, nil
}
