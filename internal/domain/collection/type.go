package collection

import (
	"fmt"

	"github.com/kailas-cloud/graphvec/internal/domain"
)

// Type is one of the fixed GraphRAG collection kinds.
type Type string

// Collection types.
const (
	Document             Type = "document"
	Relationship         Type = "relationship"
	TextUnit             Type = "text_unit"
	EntityTitle          Type = "entity_title"
	EntityDescription    Type = "entity_description"
	CommunityTitle       Type = "community_title"
	CommunitySummary     Type = "community_summary"
	CommunityFullContent Type = "community_full_content"
)

var allTypes = []Type{
	Document,
	Relationship,
	TextUnit,
	EntityTitle,
	EntityDescription,
	CommunityTitle,
	CommunitySummary,
	CommunityFullContent,
}

// AllTypes returns every collection type in declaration order.
func AllTypes() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// IsValid checks if the collection type is part of the closed set.
func (t Type) IsValid() bool {
	for _, v := range allTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (t Type) String() string { return string(t) }

// ParseType converts a raw name into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownCollectionType, s)
	}
	return t, nil
}

// ParseTypes converts raw names, failing on the first unknown one.
func ParseTypes(names []string) ([]Type, error) {
	out := make([]Type, 0, len(names))
	for _, n := range names {
		t, err := ParseType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
