package broker

import (
	"context"
	"sync"

	"github.com/vanshika/fraudstream/internal/events"
)

// MemoryPublisher is an in-memory Publisher used for dry runs and for testing
// the stream loop without a running broker.
type MemoryPublisher struct {
	mu      sync.Mutex
	batches [][]Message
	calls   int
	failAt  int
	failErr error
	closed  bool
}

// NewMemoryPublisher returns an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// FailAt makes the n-th send (1-based) of every subsequent batch fail with err.
func (m *MemoryPublisher) FailAt(n int, err error) *MemoryPublisher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt = n
	m.failErr = err
	return m
}

// Publish implements Publisher. A failing send fails the whole batch and nothing is recorded.
func (m *MemoryPublisher) Publish(ctx context.Context, batch []events.TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	perr := PublishError{Total: len(batch)}
	msgs := make([]Message, 0, len(batch))
	for i, ev := range batch {
		if err := ctx.Err(); err != nil {
			perr.append(err)
			continue
		}
		if m.failAt > 0 && i+1 == m.failAt {
			perr.append(m.failErr)
			continue
		}
		msg, err := NewMessage(ev)
		if err != nil {
			perr.append(err)
			continue
		}
		msgs = append(msgs, msg)
	}
	if err := perr.asError(); err != nil {
		return err
	}
	m.batches = append(m.batches, msgs)
	return nil
}

// Close implements Publisher.
func (m *MemoryPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Publish was invoked.
func (m *MemoryPublisher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MemoryPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Batches returns a snapshot of the acknowledged batches.
func (m *MemoryPublisher) Batches() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.batches))
	for i, b := range m.batches {
		out[i] = append([]Message(nil), b...)
	}
	return out
}

// Messages returns every acknowledged message in publish order.
func (m *MemoryPublisher) Messages() []Message {
	var out []Message
	for _, b := range m.Batches() {
		out = append(out, b...)
	}
	return out
}

var _ Publisher = (*MemoryPublisher)(nil)
