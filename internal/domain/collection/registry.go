package collection

import (
	"fmt"

	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/domain/collection/field"
)

// Registry is the single source of truth for per-type fields and embed-text composition.
type Registry struct {
	schemas   map[Type]Schema
	dimension int
}

// NewRegistry builds the fixed schema table for the given vector dimension.
// dimension <= 0 selects DefaultDimension.
func NewRegistry(dimension int) *Registry {
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	sourceID := field.MustNew(field.SourceID, field.Identity, 200)
	single := func(t Type, name string, maxLen int) Schema {
		return Schema{
			typ:       t,
			fields:    []field.Field{sourceID, field.MustNew(name, field.Source, maxLen)},
			sources:   []string{name},
			dimension: dimension,
		}
	}
	pair := func(t Type, second string, maxLen int) Schema {
		derived := "title_" + second
		return Schema{
			typ: t,
			fields: []field.Field{
				sourceID,
				field.MustNew("title", field.Source, 500),
				field.MustNew(second, field.Source, maxLen),
				field.MustNew(derived, field.Derived, 500+1+maxLen),
			},
			sources:   []string{"title", second},
			derived:   derived,
			dimension: dimension,
		}
	}

	r := &Registry{dimension: dimension}
	r.schemas = map[Type]Schema{
		Document:             single(Document, "text", 10000),
		Relationship:         single(Relationship, "description", 2000),
		TextUnit:             single(TextUnit, "text", 5000),
		EntityTitle:          single(EntityTitle, "title", 500),
		EntityDescription:    pair(EntityDescription, "description", 2000),
		CommunityTitle:       single(CommunityTitle, "title", 500),
		CommunitySummary:     pair(CommunitySummary, "summary", 3000),
		CommunityFullContent: single(CommunityFullContent, "full_content", 10000),
	}
	return r
}

// Resolve returns the schema for t.
func (r *Registry) Resolve(t Type) (Schema, error) {
	s, ok := r.schemas[t]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", domain.ErrUnknownCollectionType, string(t))
	}
	return s, nil
}

// ComposeEmbeddingText returns the text that gets embedded for rec in collection t.
func (r *Registry) ComposeEmbeddingText(t Type, rec Record) (string, error) {
	s, err := r.Resolve(t)
	if err != nil {
		return "", err
	}
	return s.Compose(rec)
}

// Dimension returns the shared vector length.
func (r *Registry) Dimension() int { return r.dimension }

// Types returns all registered types in declaration order.
func (r *Registry) Types() []Type { return AllTypes() }
