package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vanshika/fraudstream/internal/domain"
	"github.com/vanshika/fraudstream/internal/events"
)

// Publisher sends a batch of events to the broker and waits for every acknowledgment.
type Publisher interface {
	Publish(ctx context.Context, batch []events.TransactionEvent) error
	Close() error
}

// ErrMissingBrokers indicates no bootstrap address was configured.
var ErrMissingBrokers = errors.New("at least one broker address is required")

// Message is the keyed wire form of one event.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// NewMessage encodes ev under a fresh partitioning key. Keys are never reused for deduplication.
func NewMessage(ev events.TransactionEvent) (Message, error) {
	value, err := events.Encode(ev)
	if err != nil {
		return Message{}, fmt.Errorf("encode transaction %s: %w", ev.TransactionID, err)
	}
	return Message{
		Key:   []byte(uuid.NewString()),
		Value: value,
		Headers: map[string]string{
			"schema_version": strconv.Itoa(ev.SchemaVersion),
		},
	}, nil
}

// PublishError accumulates the failed sends of one batch.
type PublishError struct {
	Total  int
	Errors []error
}

func (e *PublishError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: %d of %d sends failed: %v", domain.ErrPublish, 1, e.Total, e.Errors[0])
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: %d of %d sends failed: %s", domain.ErrPublish, len(e.Errors), e.Total, strings.Join(msgs, "; "))
}

// Unwrap exposes ErrPublish and every underlying send error to errors.Is.
func (e *PublishError) Unwrap() []error {
	return append([]error{domain.ErrPublish}, e.Errors...)
}

func (e *PublishError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *PublishError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
