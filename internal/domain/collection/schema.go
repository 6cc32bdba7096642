package collection

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/domain/collection/field"
)

const (
	// DefaultDimension is the embedding length shared by all collections.
	DefaultDimension = 4096
	// DefaultPrefix is prepended to the type name to form the physical collection name.
	DefaultPrefix = "graphrag_"

	composeSeparator = ":"
)

// Schema is the immutable per-type definition: persisted fields and the embed-text template.
type Schema struct {
	typ       Type
	fields    []field.Field
	sources   []string
	derived   string
	dimension int
}

// Type returns the collection type.
func (s Schema) Type() Type { return s.typ }

// Fields returns the persisted attribute fields in schema order.
func (s Schema) Fields() []field.Field { return s.fields }

// FieldNames returns the attribute field names in schema order.
func (s Schema) FieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name()
	}
	return out
}

// SourceFields returns the fields read by the embed-text template, in composition order.
func (s Schema) SourceFields() []string { return s.sources }

// DerivedField returns the field that stores the composed text, or "".
func (s Schema) DerivedField() string { return s.derived }

// Dimension returns the vector length.
func (s Schema) Dimension() int { return s.dimension }

// PhysicalName returns the backend collection name.
func (s Schema) PhysicalName(prefix string) string { return prefix + string(s.typ) }

// Field looks up a field by name.
func (s Schema) Field(name string) (field.Field, bool) {
	for _, f := range s.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// HasField checks if name is a declared attribute field.
func (s Schema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Compose builds the embed text: one source field verbatim, or two joined by ":" in schema order.
func (s Schema) Compose(rec Record) (string, error) {
	parts := make([]string, 0, len(s.sources))
	for _, name := range s.sources {
		v, ok := rec.Get(name)
		if !ok {
			return "", domain.NewFieldError(domain.ErrMissingField, string(s.typ), name)
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, composeSeparator), nil
}

// Prepare validates rec for storage and returns a copy with the derived field filled in,
// along with the composed embed text.
func (s Schema) Prepare(rec Record) (Record, string, error) {
	if _, ok := rec.Get(field.SourceID); !ok {
		return Record{}, "", domain.NewFieldError(domain.ErrMissingField, string(s.typ), field.SourceID)
	}
	for name := range rec.Fields {
		if !s.HasField(name) {
			return Record{}, "", domain.NewFieldError(domain.ErrUnknownField, string(s.typ), name)
		}
	}

	text, err := s.Compose(rec)
	if err != nil {
		return Record{}, "", err
	}

	out := rec.Clone()
	if s.derived != "" {
		out.Fields[s.derived] = text
	}

	for _, f := range s.fields {
		if v, ok := out.Fields[f.Name()]; ok && !f.Fits(v) {
			return Record{}, "", domain.NewFieldError(domain.ErrFieldTooLong, string(s.typ), f.Name())
		}
	}
	if rec.HasVector() {
		if err := domain.CheckDimension(rec.Vector, s.dimension); err != nil {
			return Record{}, "", fmt.Errorf("%s: %w", s.typ, err)
		}
	}
	return out, text, nil
}
