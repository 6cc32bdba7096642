package result

import (
	"errors"

	"github.com/kailas-cloud/graphvec/internal/domain/collection"
)

// Outcome is one collection's contribution to a fan-out: hits or an error, never both.
type Outcome struct {
	Hits []Hit
	Err  error
}

// OK reports whether the collection answered.
func (o Outcome) OK() bool { return o.Err == nil }

// Fanout maps every requested collection to its outcome.
type Fanout map[collection.Type]Outcome

// Failed returns the collections whose search failed, in the given order.
func (f Fanout) Failed(order []collection.Type) []collection.Type {
	var out []collection.Type
	for _, t := range order {
		if o, ok := f[t]; ok && o.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

// Err joins all per-collection errors, or returns nil when every collection answered.
func (f Fanout) Err(order []collection.Type) error {
	var errs []error
	for _, t := range order {
		if o, ok := f[t]; ok && o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Groups returns the successful hit lists in the given order.
func (f Fanout) Groups(order []collection.Type) [][]Hit {
	out := make([][]Hit, 0, len(order))
	for _, t := range order {
		if o, ok := f[t]; ok && o.Err == nil {
			out = append(out, o.Hits)
		}
	}
	return out
}

// Hybrid is a fan-out merged into one ranking. Failed holds the error of every collection
// that did not answer; it is empty when all of them did.
type Hybrid struct {
	Hits   []Hit
	Failed map[collection.Type]error
}

// Partial reports whether the ranking is missing at least one collection.
func (h Hybrid) Partial() bool { return len(h.Failed) > 0 }

// Hybridize merges the successful collections of f, truncated to limit, and records the
// failed ones.
func (f Fanout) Hybridize(limit int, order []collection.Type) Hybrid {
	h := Hybrid{Hits: Merge(limit, f.Groups(order)...)}
	for _, t := range f.Failed(order) {
		if h.Failed == nil {
			h.Failed = make(map[collection.Type]error)
		}
		h.Failed[t] = f[t].Err
	}
	return h
}
