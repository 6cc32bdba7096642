package qdrant

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/graphvec/internal/db"
)

// Insert upserts all rows as new points with random UUIDs.
func (s *Store) Insert(ctx context.Context, collection string, rows []db.Row) error {
	if len(rows) == 0 {
		return nil
	}

	last := s.seq.Add(int64(len(rows)))
	first := last - int64(len(rows)) + 1

	points := make([]*qdrant.PointStruct, len(rows))
	for i, row := range rows {
		payload := make(map[string]any, len(row.Fields)+1)
		for k, v := range row.Fields {
			payload[k] = v
		}
		payload[payloadSeq] = first + int64(i)

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(row.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := s.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(wait),
		Points:         points,
	})
	if err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	return nil
}

// DeleteWhere counts the matching points, then deletes them by filter.
func (s *Store) DeleteWhere(ctx context.Context, collection, field, value string) (int, error) {
	return s.deleteByFilter(ctx, collection, matchFilter(field, value), db.OpDelete)
}

// Truncate deletes every point.
func (s *Store) Truncate(ctx context.Context, collection string) (int, error) {
	return s.deleteByFilter(ctx, collection, &qdrant.Filter{}, db.OpTruncate)
}

func (s *Store) deleteByFilter(ctx context.Context, collection string, filter *qdrant.Filter, op string) (int, error) {
	n, err := s.api.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, &db.Error{Op: op, Err: err}
	}
	if n == 0 {
		return 0, nil
	}

	_, err = s.api.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(wait),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return 0, &db.Error{Op: op, Err: err}
	}
	return int(n), nil
}

// SearchKNN queries nearest points; Euclid scores are distances, smallest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Entry, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", db.ErrInvalidQuery)
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: vector is required", db.ErrInvalidQuery)
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", db.ErrInvalidQuery)
	}

	req := &qdrant.QueryPoints{
		CollectionName: q.Collection,
		Query:          qdrant.NewQuery(q.Vector...),
		Limit:          qdrant.PtrOf(uint64(q.K)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(q.Fields) > 0 {
		req.WithPayload = qdrant.NewWithPayloadInclude(append([]string{payloadSeq}, q.Fields...)...)
	}

	points, err := s.api.Query(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	entries := make([]db.Entry, 0, len(points))
	for _, p := range points {
		e := entryFromPayload(p.GetId(), p.GetPayload())
		e.Distance = float64(p.GetScore())
		entries = append(entries, e)
	}
	return entries, nil
}

// FindByField scrolls points whose field matches any of values and orders them by insertion.
func (s *Store) FindByField(
	ctx context.Context, collection, field string, values []string, limit int,
) ([]db.Entry, error) {
	if len(values) == 0 {
		return nil, nil
	}

	points, err := s.api.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeywords(field, values...)},
		},
		Limit:       qdrant.PtrOf(uint32(scrollCap)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}

	entries := make([]db.Entry, 0, len(points))
	for _, p := range points {
		entries = append(entries, entryFromPayload(p.GetId(), p.GetPayload()))
	}
	slices.SortStableFunc(entries, func(a, b db.Entry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Count returns the exact number of points.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.api.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return int(n), nil
}

func matchFilter(field, value string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(field, value)},
	}
}

func entryFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) db.Entry {
	e := db.Entry{ID: pointIDString(id), Fields: make(map[string]string, len(payload))}
	for k, v := range payload {
		if k == payloadSeq {
			e.Seq = v.GetIntegerValue()
			continue
		}
		e.Fields[k] = valueString(v)
	}
	return e
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func valueString(v *qdrant.Value) string {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return fmt.Sprintf("%d", k.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return fmt.Sprintf("%g", k.DoubleValue)
	case *qdrant.Value_BoolValue:
		return fmt.Sprintf("%t", k.BoolValue)
	default:
		return ""
	}
}
