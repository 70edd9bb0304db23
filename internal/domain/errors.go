package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed stream configuration. Start never opens a broker connection when it is returned.
	ErrValidation = errors.New("invalid stream configuration")
	// ErrGeneration marks a failure inside the generator or while mapping its rows.
	ErrGeneration = errors.New("batch generation failed")
	// ErrPublish marks a rejected or timed out broker send.
	ErrPublish = errors.New("batch publish failed")
	// ErrBrokerUnavailable indicates the broker connection could not be opened.
	ErrBrokerUnavailable = errors.New("broker unavailable")
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation.Error(), e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
