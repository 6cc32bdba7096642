package result

import (
	"slices"

	"github.com/kailas-cloud/graphvec/internal/domain/collection"
)

// Hit is a single nearest-neighbour match.
type Hit struct {
	Collection collection.Type   `json:"collection"`
	ID         string            `json:"id"`
	Fields     map[string]string `json:"fields"`
	Distance   float64           `json:"distance"`
	Score      float64           `json:"score"`
	// Seq is the insertion sequence within the collection, used only to break distance ties.
	Seq int64 `json:"-"`
}

// SourceID returns the record identity of the hit.
func (h Hit) SourceID() string { return h.Fields["source_id"] }

// ScoreFromDistance maps an L2 distance to a (0, 1] similarity score.
func ScoreFromDistance(d float64) float64 {
	return 1 / (1 + d)
}

// SortByDistance orders hits by ascending distance, ties by insertion sequence.
func SortByDistance(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}

// Merge concatenates groups in order and stable-sorts the result by distance only,
// so equal distances keep group order and then their order within the group.
// The output is truncated to limit when limit > 0.
func Merge(limit int, groups ...[]Hit) []Hit {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	merged := make([]Hit, 0, n)
	for _, g := range groups {
		merged = append(merged, g...)
	}

	slices.SortStableFunc(merged, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// Truncate returns at most limit hits.
func Truncate(hits []Hit, limit int) []Hit {
	if limit >= 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
