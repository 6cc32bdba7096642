package domain

import (
	"errors"
	"fmt"
)

// Caller-input errors. Never retried.
var (
	// ErrUnknownCollectionType signals a collection type outside the closed set.
	ErrUnknownCollectionType = errors.New("unknown collection type")
	// ErrMissingField signals a record without a field its schema requires.
	ErrMissingField = errors.New("missing field")
	// ErrUnknownField signals a field name that the collection schema does not declare.
	ErrUnknownField = errors.New("unknown field")
	// ErrFieldTooLong signals a field value longer than the schema allows.
	ErrFieldTooLong = errors.New("field too long")
	// ErrDimensionMismatch signals a vector whose length differs from the configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Service errors. Transient causes are retried before these surface.
var (
	// ErrEmbeddingService signals an embedding provider failure after retries.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrVectorService signals a vector database failure after retries.
	ErrVectorService = errors.New("vector service error")
	// ErrNotConnected signals a store or query call on a client without a live connection.
	ErrNotConnected = errors.New("not connected")
)

// FieldError attaches the offending field name to a field-level sentinel.
type FieldError struct {
	Collection string
	Field      string
	Err        error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s.%s", e.Err.Error(), e.Collection, e.Field)
}

func (e *FieldError) Unwrap() error { return e.Err }

// NewFieldError creates a FieldError.
func NewFieldError(err error, collection, field string) error {
	return &FieldError{Collection: collection, Field: field, Err: err}
}

// DimensionError reports the expected and actual vector length.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch.Error(), e.Expected, e.Actual)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// CheckDimension returns a DimensionError when len(vec) != dim.
func CheckDimension(vec []float32, dim int) error {
	if len(vec) != dim {
		return &DimensionError{Expected: dim, Actual: len(vec)}
	}
	return nil
}

// IsInputError reports whether err is a caller-input error.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnknownCollectionType) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrFieldTooLong) ||
		errors.Is(err, ErrDimensionMismatch)
}
