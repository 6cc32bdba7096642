package field

import (
	"fmt"
	"unicode/utf8"
)

// Role describes how a field participates in a collection schema.
type Role string

// Field role constants.
const (
	// Identity is the logical record identity (source_id).
	Identity Role = "identity"
	// Source is a text field read by the embed-text template.
	Source Role = "source"
	// Derived holds the composed embed text and is filled by the store.
	Derived Role = "derived"
)

// SourceID is the identity field shared by every collection.
const SourceID = "source_id"

var reservedFieldNames = map[string]bool{
	"id": true, "embedding": true, "vector": true, "score": true, "distance": true,
}

// Field is an immutable value object describing a persisted attribute field.
type Field struct {
	name      string
	role      Role
	maxLength int
}

// New validates and creates a Field. maxLength <= 0 means unbounded.
func New(name string, role Role, maxLength int) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if reservedFieldNames[name] {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	switch role {
	case Identity, Source, Derived:
	default:
		return Field{}, fmt.Errorf("invalid field role %q for %q", role, name)
	}
	return Field{name: name, role: role, maxLength: maxLength}, nil
}

// MustNew is New for static schema tables.
func MustNew(name string, role Role, maxLength int) Field {
	f, err := New(name, role, maxLength)
	if err != nil {
		panic(err)
	}
	return f
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Role returns the field's schema role.
func (f Field) Role() Role { return f.role }

// MaxLength returns the maximum value length in characters (0 = unbounded).
func (f Field) MaxLength() int { return f.maxLength }

// Fits reports whether value is within the field's length limit.
func (f Field) Fits(value string) bool {
	return f.maxLength <= 0 || utf8.RuneCountInString(value) <= f.maxLength
}
