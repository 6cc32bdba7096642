package collection

import (
	"maps"

	"github.com/kailas-cloud/graphvec/internal/domain/collection/field"
)

// Record is a set of attribute values plus an optional embedding.
// A nil Vector means the store computes it at insert time.
type Record struct {
	Fields map[string]string `json:"fields"`
	Vector []float32         `json:"vector,omitempty"`
}

// NewRecord creates a record without a vector.
func NewRecord(fields map[string]string) Record {
	return Record{Fields: fields}
}

// SourceID returns the record identity.
func (r Record) SourceID() string { return r.Fields[field.SourceID] }

// Get returns a field value and whether it is present.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// HasVector reports whether the caller supplied an embedding.
func (r Record) HasVector() bool { return r.Vector != nil }

// Clone returns a copy with its own field map.
func (r Record) Clone() Record {
	return Record{Fields: maps.Clone(r.Fields), Vector: r.Vector}
}
