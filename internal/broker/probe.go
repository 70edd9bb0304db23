package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const defaultProbeTimeout = 2 * time.Second

// Probe checks that at least one bootstrap broker accepts TCP connections.
type Probe struct {
	Brokers []string
	Timeout time.Duration
}

// Probe implements the readiness check used by the HTTP health endpoint.
func (p Probe) Probe(ctx context.Context) error {
	if len(p.Brokers) == 0 {
		return ErrMissingBrokers
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	var lastErr error
	for _, addr := range p.Brokers {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		conn, err := kafka.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("dial %s: %w", addr, err)
			continue
		}
		_ = conn.Close()
		return nil
	}
	return lastErr
}
