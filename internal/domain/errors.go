package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound   = errors.New("session not found or expired")
	ErrInvalidIdentifier = errors.New("invalid UUID format")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrStore             = errors.New("redis error")
	ErrSerialization     = errors.New("serialization error")
)

// InvalidIdentifier wraps ErrInvalidIdentifier with the offending value.
func InvalidIdentifier(id string) error {
	return fmt.Errorf("%w: %s", ErrInvalidIdentifier, id)
}

type PayloadTooLargeError struct {
	Size  int
	Limit int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload too large: %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

func (e *PayloadTooLargeError) Is(target error) bool { return target == ErrPayloadTooLarge }

type RateLimitError struct {
	Limit int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: maximum %d requests per session exceeded", e.Limit)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// StoreError reports a failed round trip to the backing store. Op names the
// store operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("redis error: %s: %v", e.Op, e.Err) }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func (e *StoreError) Unwrap() error { return e.Err }

// SerializationError reports stored data that could not be encoded or decoded.
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error: %s: %v", e.Field, e.Err)
}

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

func (e *SerializationError) Unwrap() error { return e.Err }
